package services

import (
	"fmt"
	"math/rand"
	"time"

	"board-arena-system/models"

	"github.com/google/uuid"
)

// BuildTournament constructs a fresh TournamentState for the entrant: real
// users from the eligible pool first (uniform sample without replacement),
// bots filling any gap, every participant's originalStats frozen at creation
// time. Returns an error only for an unrecognized type — pool insufficiency
// is never an error.
func BuildTournament(user *models.UserRecord, pool []models.UserRecord, typ models.TournamentType) (*models.TournamentState, error) {
	spec, ok := models.SpecFor(typ)
	if !ok {
		return nil, fmt.Errorf("unknown tournament type %q", typ)
	}

	entrant := snapshotUser(user)
	opponents := sampleOpponents(pool, spec.Entrants-1)
	tier := TierForLeague(user.League)
	for len(opponents) < spec.Entrants-1 {
		opponents = append(opponents, GenerateBot(tier, spec.StatMultiplier))
	}
	rand.Shuffle(len(opponents), func(i, j int) {
		opponents[i], opponents[j] = opponents[j], opponents[i]
	})

	players := append([]models.Participant{entrant}, opponents...)

	st := &models.TournamentState{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     spec.Title,
		Status:    models.StatusBracketReady,
		Players:   players,
		CreatedAt: time.Now(),
	}

	switch spec.Structure {
	case models.StructureRoundRobin:
		st.Rounds = roundRobinSchedule(len(players))
		st.CurrentRoundRobinRound = 1
	case models.StructureElimination:
		st.Rounds = eliminationBracket(len(players))
	}
	markUserMatches(st)
	return st, nil
}

// BuildDungeonStage constructs the single-player staged variant: one round,
// one match against a stage-scaled bot, on the shared state shape.
func BuildDungeonStage(user *models.UserRecord, stage int) *models.TournamentState {
	spec, _ := models.SpecFor(models.TypeDungeon)
	entrant := snapshotUser(user)
	keeper := GenerateBot(TierForStage(stage), spec.StatMultiplier)
	keeper.Name = fmt.Sprintf("Stage %d Keeper", stage)

	st := &models.TournamentState{
		ID:      uuid.NewString(),
		Type:    models.TypeDungeon,
		Title:   fmt.Sprintf("%s — Stage %d", spec.Title, stage),
		Status:  models.StatusBracketReady,
		Players: []models.Participant{entrant, keeper},
		Rounds: []models.Round{{
			Cycle:   1,
			Matches: []models.Match{{P1: 0, P2: 1, Winner: models.NoParticipant, IsUserMatch: true}},
		}},
		CurrentStageAttempt: &models.StageAttempt{Stage: stage, StartedAt: time.Now()},
		CreatedAt:           time.Now(),
	}
	return st
}

// snapshotUser freezes the entrant's identity and effective stats into a
// participant. Equipment re-rolls after this point do not touch the snapshot;
// only an explicit round refresh recomputes it.
func snapshotUser(u *models.UserRecord) models.Participant {
	stats := ComputeEffectiveStats(u)
	return models.Participant{
		ID:            u.ID,
		Name:          u.DisplayName,
		AvatarURL:     u.AvatarURL,
		League:        u.League,
		Stats:         stats,
		OriginalStats: stats,
		Items:         u.Items,
	}
}

// sampleOpponents draws up to n records uniformly without replacement and
// snapshots each into a participant. Selection is not weighted by rank.
func sampleOpponents(pool []models.UserRecord, n int) []models.Participant {
	idx := rand.Perm(len(pool))
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]models.Participant, 0, n)
	for _, i := range idx[:n] {
		out = append(out, snapshotUser(&pool[i]))
	}
	return out
}

// roundRobinSchedule builds the circle-method schedule: n-1 cycles, everyone
// plays once per cycle. n must be even (entrant counts are configured even).
func roundRobinSchedule(n int) []models.Round {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rounds := make([]models.Round, 0, n-1)
	for cycle := 1; cycle < n; cycle++ {
		matches := make([]models.Match, 0, n/2)
		for i := 0; i < n/2; i++ {
			matches = append(matches, models.Match{
				P1:     order[i],
				P2:     order[n-1-i],
				Winner: models.NoParticipant,
			})
		}
		rounds = append(rounds, models.Round{Cycle: cycle, Matches: matches})
		// rotate everyone but the fixed first seat
		last := order[n-1]
		copy(order[2:], order[1:n-1])
		order[1] = last
	}
	return rounds
}

// eliminationBracket pairs the first round sequentially and pre-creates the
// later rounds with empty slots filled as winners advance.
func eliminationBracket(n int) []models.Round {
	rounds := make([]models.Round, 0)
	depth := 1
	for size := n; size >= 2; size /= 2 {
		matches := make([]models.Match, size/2)
		for i := range matches {
			matches[i] = models.Match{
				P1:     models.NoParticipant,
				P2:     models.NoParticipant,
				Winner: models.NoParticipant,
			}
		}
		rounds = append(rounds, models.Round{Cycle: depth, Matches: matches})
		depth++
	}
	for i := 0; i < n/2; i++ {
		rounds[0].Matches[i].P1 = 2 * i
		rounds[0].Matches[i].P2 = 2*i + 1
	}
	return rounds
}

// markUserMatches flags every currently-assigned match involving the entrant.
// Later elimination rounds are re-flagged as the entrant advances.
func markUserMatches(st *models.TournamentState) {
	for ri := range st.Rounds {
		for mi := range st.Rounds[ri].Matches {
			m := &st.Rounds[ri].Matches[mi]
			m.IsUserMatch = m.Involves(models.UserIndex)
		}
	}
}
