package models

// NoParticipant marks an empty side of a match (bye, or a bracket slot not
// yet filled by an earlier round's winner).
const NoParticipant = -1

// CommentaryEvent is one simulation event replayed to the client during the
// time-paced playback of a match.
type CommentaryEvent struct {
	Turn    int    `json:"turn"`
	ActorID string `json:"actor_id"`
	Text    string `json:"text"`
	P1Score int    `json:"p1_score"`
	P2Score int    `json:"p2_score"`
}

// Match is a single pairing inside a round. P1/P2/Winner are indexes into
// TournamentState.Players, NoParticipant when absent.
type Match struct {
	P1          int    `json:"p1"`
	P2          int    `json:"p2"`
	IsUserMatch bool   `json:"is_user_match"`
	IsFinished  bool   `json:"is_finished"`
	Winner      int    `json:"winner"`
	Score       [2]int `json:"score"`
	// FinalScore is Score normalized so the pair sums to 100.
	FinalScore  [2]int            `json:"final_score"`
	Commentary  []CommentaryEvent `json:"commentary,omitempty"`
	TimeElapsed int               `json:"time_elapsed"`
	// RevealedEvents is the playback cursor advanced by simulation ticks.
	RevealedEvents int `json:"revealed_events"`
}

// IsBye reports whether the match has at most one real participant.
func (m *Match) IsBye() bool {
	return m.P1 == NoParticipant || m.P2 == NoParticipant
}

// Involves reports whether the participant index plays in this match.
func (m *Match) Involves(idx int) bool {
	return m.P1 == idx || m.P2 == idx
}

// NormalizeScore fills FinalScore as a percentage pair summing to 100.
func (m *Match) NormalizeScore() {
	total := m.Score[0] + m.Score[1]
	if total <= 0 {
		m.FinalScore = [2]int{50, 50}
		return
	}
	p1 := m.Score[0] * 100 / total
	m.FinalScore = [2]int{p1, 100 - p1}
}

// Round is an ordered set of matches. For round-robin tournaments Cycle
// labels the pass number ("round 3 of N"); for elimination brackets it is the
// bracket depth starting at 1.
type Round struct {
	Cycle   int     `json:"cycle"`
	Matches []Match `json:"matches"`
}

// Finished reports whether every match of the round is resolved.
func (r *Round) Finished() bool {
	for i := range r.Matches {
		if !r.Matches[i].IsFinished {
			return false
		}
	}
	return true
}
