package models

// Condition bounds. A rolled condition always lands inside [ConditionMin,
// ConditionMax]; nil means "not rolled yet" for this tournament.
const (
	ConditionMin = 40
	ConditionMax = 100
)

// Participant is one competitor inside a TournamentState — either the human
// entrant, a snapshot of another real user, or a generated bot.
type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	League    int    `json:"league"`
	IsBot     bool   `json:"is_bot"`

	// Stats is the working copy mutated during simulation. OriginalStats is
	// the frozen baseline Stats is reset to before every match.
	Stats         StatVector `json:"stats"`
	OriginalStats StatVector `json:"original_stats"`

	// Condition is the per-tournament performance modifier. nil until rolled.
	Condition *int `json:"condition,omitempty"`

	Wins   int `json:"wins"`
	Losses int `json:"losses"`

	Items []Item `json:"items,omitempty"`
}

// ConditionValid reports whether the participant carries a usable rolled
// condition. Anything outside [ConditionMin, ConditionMax] counts as unset.
func (p *Participant) ConditionValid() bool {
	return p.Condition != nil && *p.Condition >= ConditionMin && *p.Condition <= ConditionMax
}

// ResetStats restores the working stats to the frozen baseline, undoing any
// in-match mutation from the simulator.
func (p *Participant) ResetStats() {
	p.Stats = p.OriginalStats
}

// WinRate returns wins / played, 0 when no match has been played.
func (p *Participant) WinRate() float64 {
	played := p.Wins + p.Losses
	if played == 0 {
		return 0
	}
	return float64(p.Wins) / float64(played)
}
