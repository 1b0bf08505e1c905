package models

import (
	"time"
)

// TournamentType selects the competitive tier. Each type owns exactly one
// slot on the user record, so a user carries at most one live tournament per
// type.
type TournamentType string

const (
	TypeNeighborhood TournamentType = "neighborhood"
	TypeNational     TournamentType = "national"
	TypeWorld        TournamentType = "world"
	// TypeDungeon is the single-player staged variant layered on the same
	// state shape (CurrentStageAttempt set).
	TypeDungeon TournamentType = "dungeon"
)

// Structure is the round layout a type uses.
type Structure string

const (
	StructureElimination Structure = "single_elimination"
	StructureRoundRobin  Structure = "round_robin"
)

// TypeSpec is the single per-type lookup: entrant count, structure, stat
// multiplier, league gate, score and reward tables. It replaces the source's
// repeated per-type switch statements.
type TypeSpec struct {
	Title          string
	Entrants       int
	Structure      Structure
	StatMultiplier float64
	MinLeague      int
	// ScoreTable is indexed by rank-1; ranks past the end use the last entry.
	ScoreTable []int
	// Rewards is indexed by rank-1 with the same fallback rule.
	Rewards []RewardEntry
	// Trickle is granted per won match, accumulated on the state and paid
	// out with the final claim.
	Trickle RewardEntry
}

// RewardEntry is the claimable prize for one final rank.
type RewardEntry struct {
	Gold           int `json:"gold"`
	Materials      int `json:"materials"`
	EquipmentBoxes int `json:"equipment_boxes"`
}

var typeSpecs = map[TournamentType]TypeSpec{
	TypeNeighborhood: {
		Title:          "Neighborhood Open",
		Entrants:       6,
		Structure:      StructureRoundRobin,
		StatMultiplier: 1.0,
		MinLeague:      1,
		ScoreTable:     []int{30, 20, 12, 8, 4, 2},
		Rewards: []RewardEntry{
			{Gold: 1500, Materials: 10, EquipmentBoxes: 1},
			{Gold: 900, Materials: 6, EquipmentBoxes: 1},
			{Gold: 500, Materials: 4, EquipmentBoxes: 0},
			{Gold: 300, Materials: 2, EquipmentBoxes: 0},
			{Gold: 150, Materials: 1, EquipmentBoxes: 0},
			{Gold: 100, Materials: 0, EquipmentBoxes: 0},
		},
		Trickle: RewardEntry{Gold: 50, Materials: 1},
	},
	TypeNational: {
		Title:          "National Championship",
		Entrants:       8,
		Structure:      StructureElimination,
		StatMultiplier: 1.1,
		MinLeague:      2,
		ScoreTable:     []int{60, 40, 24, 24, 10, 10, 10, 10},
		Rewards: []RewardEntry{
			{Gold: 4000, Materials: 25, EquipmentBoxes: 2},
			{Gold: 2400, Materials: 15, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 500, Materials: 3, EquipmentBoxes: 0},
			{Gold: 500, Materials: 3, EquipmentBoxes: 0},
			{Gold: 500, Materials: 3, EquipmentBoxes: 0},
			{Gold: 500, Materials: 3, EquipmentBoxes: 0},
		},
		Trickle: RewardEntry{Gold: 55, Materials: 1},
	},
	TypeWorld: {
		Title:          "World Masters",
		Entrants:       16,
		Structure:      StructureElimination,
		StatMultiplier: 1.25,
		MinLeague:      3,
		ScoreTable:     []int{120, 80, 48, 48, 20, 20, 20, 20, 8, 8, 8, 8, 8, 8, 8, 8},
		Rewards: []RewardEntry{
			{Gold: 10000, Materials: 60, EquipmentBoxes: 3},
			{Gold: 6000, Materials: 35, EquipmentBoxes: 2},
			{Gold: 3000, Materials: 20, EquipmentBoxes: 1},
			{Gold: 3000, Materials: 20, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 1200, Materials: 8, EquipmentBoxes: 1},
			{Gold: 500, Materials: 3, EquipmentBoxes: 0},
		},
		// High-tier wins also trickle a box, not just the final claim.
		Trickle: RewardEntry{Gold: 62, Materials: 1, EquipmentBoxes: 1},
	},
	TypeDungeon: {
		Title:          "Spirit Dungeon",
		Entrants:       2,
		Structure:      StructureElimination,
		StatMultiplier: 1.0,
		MinLeague:      1,
		ScoreTable:     []int{10, 0},
		Rewards: []RewardEntry{
			{Gold: 800, Materials: 5, EquipmentBoxes: 1},
			{Gold: 0, Materials: 0, EquipmentBoxes: 0},
		},
		Trickle: RewardEntry{Gold: 50, Materials: 1},
	},
}

// SpecFor returns the lookup entry for a type, false for unknown types.
func SpecFor(t TournamentType) (TypeSpec, bool) {
	s, ok := typeSpecs[t]
	return s, ok
}

// AllTypes lists the three daily tournament types (dungeon excluded, it is
// on-demand).
var AllTypes = []TournamentType{TypeNeighborhood, TypeNational, TypeWorld}

// Tournament lifecycle states.
type TournamentStatus string

const (
	StatusBracketReady    TournamentStatus = "bracket_ready"
	StatusRoundInProgress TournamentStatus = "round_in_progress"
	StatusRoundComplete   TournamentStatus = "round_complete"
	StatusComplete        TournamentStatus = "complete"
	StatusEliminated      TournamentStatus = "eliminated"
	StatusForfeited       TournamentStatus = "forfeited"
)

// Terminal reports whether the status admits no further transitions.
func (s TournamentStatus) Terminal() bool {
	return s == StatusComplete || s == StatusEliminated || s == StatusForfeited
}

// MatchCursor points at the single in-flight match.
type MatchCursor struct {
	RoundIndex int `json:"round_index"`
	MatchIndex int `json:"match_index"`
}

// StageAttempt records the dungeon stage currently being attempted.
type StageAttempt struct {
	Stage     int       `json:"stage"`
	StartedAt time.Time `json:"started_at"`
}

// TournamentState is the full embedded state of one tournament instance. It
// lives inside the owning user's record and is mutated only through the
// engine's serialized actions.
type TournamentState struct {
	ID    string         `json:"id"`
	Type  TournamentType `json:"type"`
	Title string         `json:"title"`

	Status  TournamentStatus `json:"status"`
	Players []Participant    `json:"players"`
	Rounds  []Round          `json:"rounds"`

	// CurrentRoundRobinRound is the active cycle (1-based); only meaningful
	// for round-robin types.
	CurrentRoundRobinRound int `json:"current_round_robin_round,omitempty"`

	CurrentSimulatingMatch *MatchCursor `json:"current_simulating_match,omitempty"`

	// SimulationSeed is set while a match runs under server authority; its
	// presence selects the verify-via-re-simulation path on completion.
	SimulationSeed *int64 `json:"simulation_seed,omitempty"`

	LastTickAt         *time.Time `json:"last_tick_at,omitempty"`
	NextRoundStartTime *time.Time `json:"next_round_start_time,omitempty"`

	AccumulatedGold           int `json:"accumulated_gold"`
	AccumulatedMaterials      int `json:"accumulated_materials"`
	AccumulatedEquipmentBoxes int `json:"accumulated_equipment_boxes"`

	// ScoreApplied guards the once-only completion score step, separately
	// from the user-facing reward claim flag.
	ScoreApplied bool `json:"score_applied"`

	CurrentStageAttempt *StageAttempt `json:"current_stage_attempt,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// UserIndex is the human entrant's index in Players, always 0 by bracket
// construction.
const UserIndex = 0

// UserParticipant returns the human entrant.
func (t *TournamentState) UserParticipant() *Participant {
	return &t.Players[UserIndex]
}

// MatchAt returns the match a cursor points at, nil for an out-of-range
// cursor.
func (t *TournamentState) MatchAt(c *MatchCursor) *Match {
	if c == nil || c.RoundIndex < 0 || c.RoundIndex >= len(t.Rounds) {
		return nil
	}
	round := &t.Rounds[c.RoundIndex]
	if c.MatchIndex < 0 || c.MatchIndex >= len(round.Matches) {
		return nil
	}
	return &round.Matches[c.MatchIndex]
}

// ActiveRoundIndex returns the round the engine is currently working
// through: the current cycle for round-robin, the earliest round with an
// unfinished match for elimination. Returns -1 when everything is finished.
func (t *TournamentState) ActiveRoundIndex() int {
	spec, ok := SpecFor(t.Type)
	if ok && spec.Structure == StructureRoundRobin {
		idx := t.CurrentRoundRobinRound - 1
		if idx >= 0 && idx < len(t.Rounds) {
			return idx
		}
		return -1
	}
	for i := range t.Rounds {
		if !t.Rounds[i].Finished() {
			return i
		}
	}
	return -1
}

// PendingUserMatch finds the entrant's next unfinished match in the active
// round. Second return is false when none exists.
func (t *TournamentState) PendingUserMatch() (MatchCursor, bool) {
	ri := t.ActiveRoundIndex()
	if ri < 0 {
		return MatchCursor{}, false
	}
	for mi := range t.Rounds[ri].Matches {
		m := &t.Rounds[ri].Matches[mi]
		if m.IsUserMatch && !m.IsFinished && m.Involves(UserIndex) {
			return MatchCursor{RoundIndex: ri, MatchIndex: mi}, true
		}
	}
	return MatchCursor{}, false
}
