package services

import (
	"encoding/json"
	"log"
	"math/rand"
	"time"

	"board-arena-system/models"
	"board-arena-system/utils"

	"github.com/gosimple/slug"
)

// applyOutcome writes a resolved outcome onto the match and updates both
// participants' records.
func applyOutcome(st *models.TournamentState, cursor *models.MatchCursor, outcome SimOutcome) {
	m := st.MatchAt(cursor)
	winner, loser := m.P1, m.P2
	if outcome.Winner == 1 {
		winner, loser = m.P2, m.P1
	}
	m.Score = outcome.Score
	m.Commentary = outcome.Commentary
	m.TimeElapsed = outcome.TimeElapsed
	m.Winner = winner
	m.IsFinished = true
	m.NormalizeScore()
	m.RevealedEvents = len(m.Commentary)

	st.Players[winner].Wins++
	st.Players[loser].Losses++
}

func winnerIdx(m *models.Match) int {
	return m.Winner
}

// resolveAsLossFor finishes a match as an immediate loss for one side, used
// by the forfeit paths.
func resolveAsLossFor(st *models.TournamentState, cursor *models.MatchCursor, loser int) {
	m := st.MatchAt(cursor)
	winner := m.P1
	if winner == loser {
		winner = m.P2
	}
	m.IsFinished = true
	m.Winner = winner
	if m.P1 == loser {
		m.Score = [2]int{0, 1}
	} else {
		m.Score = [2]int{1, 0}
	}
	m.NormalizeScore()
	m.RevealedEvents = len(m.Commentary)

	st.Players[loser].Losses++
	if winner != models.NoParticipant {
		st.Players[winner].Wins++
	}
}

// advanceAfterMatch runs round-completion bookkeeping after the entrant's
// match in playedRound resolved: auto-resolve the rest of the scope, advance
// the structure, and detect terminal states.
func (s *TournamentService) advanceAfterMatch(u *models.UserRecord, st *models.TournamentState, playedRound int) {
	spec, ok := models.SpecFor(st.Type)
	if !ok {
		return
	}
	if spec.Structure == models.StructureRoundRobin {
		s.advanceRoundRobin(u, st)
		return
	}
	s.advanceElimination(u, st, playedRound)
}

func (s *TournamentService) advanceRoundRobin(u *models.UserRecord, st *models.TournamentState) {
	ri := st.CurrentRoundRobinRound - 1
	if ri >= 0 && ri < len(st.Rounds) {
		autoResolveRound(st, ri)
	}
	if st.CurrentRoundRobinRound >= len(st.Rounds) {
		s.finish(u, st, models.StatusComplete)
		return
	}
	st.CurrentRoundRobinRound++
	st.Status = models.StatusRoundComplete
	opens := time.Now().Add(roundOpenDelay)
	st.NextRoundStartTime = &opens
}

func (s *TournamentService) advanceElimination(u *models.UserRecord, st *models.TournamentState, ri int) {
	autoResolveRound(st, ri)
	propagateWinners(st, ri)

	if ri == len(st.Rounds)-1 {
		final := &st.Rounds[ri].Matches[0]
		if final.Winner == models.UserIndex {
			s.finish(u, st, models.StatusComplete)
		} else {
			s.finish(u, st, models.StatusEliminated)
		}
		return
	}

	if userInRound(st, ri+1) {
		st.Status = models.StatusRoundComplete
		opens := time.Now().Add(roundOpenDelay)
		st.NextRoundStartTime = &opens
		return
	}

	// The entrant's bracket path is exhausted; play out the rest for the
	// final ranking, then eliminate.
	resolveRemainingMatches(st)
	s.finish(u, st, models.StatusEliminated)
}

// finish moves to a terminal status and applies the once-only completion
// side effects.
func (s *TournamentService) finish(u *models.UserRecord, st *models.TournamentState, status models.TournamentStatus) {
	st.Status = status
	st.NextRoundStartTime = nil
	s.applyCompletionScore(u, st)
	archiveReplay(st)
}

// applyCompletionScore adds the rank score delta to the session and
// cumulative totals exactly once. The guard is checked before any mutation:
// both the tick-driven path and an explicit completion action can observe
// the same transition, only the first applies.
func (s *TournamentService) applyCompletionScore(u *models.UserRecord, st *models.TournamentState) {
	if st.ScoreApplied {
		return
	}
	st.ScoreApplied = true

	rank := RankOf(st.Players, models.UserIndex)
	delta := ScoreForRank(st.Type, rank)
	u.TournamentScore += delta
	u.CumulativeTournamentScore += delta

	if league := LeagueForScore(u.CumulativeTournamentScore); league > u.League {
		log.Printf("[ARENA] user %s promoted to league %d (cumulative score %d)",
			u.ID, league, u.CumulativeTournamentScore)
		u.League = league
	}
}

// autoResolveRound finishes every remaining match of the round with the
// authoritative simulator (byes advance the present side).
func autoResolveRound(st *models.TournamentState, ri int) {
	for mi := range st.Rounds[ri].Matches {
		m := &st.Rounds[ri].Matches[mi]
		if m.IsFinished {
			continue
		}
		cursor := &models.MatchCursor{RoundIndex: ri, MatchIndex: mi}
		if m.IsBye() {
			resolveBye(st, cursor)
			continue
		}
		p1, p2 := &st.Players[m.P1], &st.Players[m.P2]
		p1.ResetStats()
		p2.ResetStats()
		normalizeCondition(p1)
		normalizeCondition(p2)
		outcome := Simulate(rand.Int63(), p1, p2)
		applyOutcome(st, cursor, outcome)
	}
}

func resolveBye(st *models.TournamentState, cursor *models.MatchCursor) {
	m := st.MatchAt(cursor)
	m.IsFinished = true
	switch {
	case m.P1 != models.NoParticipant:
		m.Winner = m.P1
		m.Score = [2]int{1, 0}
	case m.P2 != models.NoParticipant:
		m.Winner = m.P2
		m.Score = [2]int{0, 1}
	default:
		m.Winner = models.NoParticipant
	}
	m.NormalizeScore()
}

// propagateWinners fills the next elimination round's slots from a finished
// round and re-flags the entrant's matches.
func propagateWinners(st *models.TournamentState, ri int) {
	if ri+1 >= len(st.Rounds) || !st.Rounds[ri].Finished() {
		return
	}
	next := &st.Rounds[ri+1]
	for mi := range st.Rounds[ri].Matches {
		winner := st.Rounds[ri].Matches[mi].Winner
		target := &next.Matches[mi/2]
		if mi%2 == 0 {
			target.P1 = winner
		} else {
			target.P2 = winner
		}
		target.IsUserMatch = target.Involves(models.UserIndex)
	}
}

// resolveRemainingMatches plays out every unfinished round in order.
// Propagation runs for finished rounds too, so a round resolved earlier but
// not yet propagated still feeds the next one.
func resolveRemainingMatches(st *models.TournamentState) {
	for ri := range st.Rounds {
		if !st.Rounds[ri].Finished() {
			autoResolveRound(st, ri)
		}
		propagateWinners(st, ri)
	}
}

// forfeitUserMatches marks every unfinished match involving the entrant as a
// loss, across all rounds and cycles.
func forfeitUserMatches(st *models.TournamentState) {
	for ri := range st.Rounds {
		for mi := range st.Rounds[ri].Matches {
			m := &st.Rounds[ri].Matches[mi]
			if !m.IsFinished && m.Involves(models.UserIndex) {
				resolveAsLossFor(st, &models.MatchCursor{RoundIndex: ri, MatchIndex: mi}, models.UserIndex)
			}
		}
	}
}

func userInRound(st *models.TournamentState, ri int) bool {
	for mi := range st.Rounds[ri].Matches {
		if st.Rounds[ri].Matches[mi].Involves(models.UserIndex) {
			return true
		}
	}
	return false
}

// archiveReplay ships the finished tournament's rounds and commentary to the
// replay bucket. Best effort; failures only log.
func archiveReplay(st *models.TournamentState) {
	if !utils.ReplayEnabled() {
		return
	}
	payload := struct {
		ID      string                  `json:"id"`
		Type    models.TournamentType   `json:"type"`
		Title   string                  `json:"title"`
		Players []models.Participant    `json:"players"`
		Rounds  []models.Round          `json:"rounds"`
		Status  models.TournamentStatus `json:"status"`
	}{st.ID, st.Type, st.Title, st.Players, st.Rounds, st.Status}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[REPLAY] marshal failed for tournament %s: %v", st.ID, err)
		return
	}
	key := "replays/" + slug.Make(st.Title) + "/" + st.ID + ".json"
	go func() {
		if err := utils.UploadReplay(key, data); err != nil {
			log.Printf("[REPLAY] upload failed for %s: %v", key, err)
		}
	}()
}
