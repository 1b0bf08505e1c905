package services

import (
	"errors"
	"log"
	"math/rand"
	"time"

	"board-arena-system/models"
)

// Engine errors, mapped to HTTP statuses at the handler boundary.
var (
	ErrInvalidType        = errors.New("unknown tournament type")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrWrongStatus        = errors.New("action not valid in current tournament status")
	ErrNoPendingMatch     = errors.New("no eligible unfinished match for the entrant")
	ErrMatchInProgress    = errors.New("a match is currently running")
	ErrRoundNotReady      = errors.New("next round has not opened yet")
	ErrLeagueTooLow       = errors.New("league too low for this tournament type")
	ErrAlreadyClaimed     = errors.New("reward already claimed")
	ErrNotComplete        = errors.New("tournament not complete")
	ErrConditionFull      = errors.New("condition is already at maximum")
	ErrUnknownPotion      = errors.New("unknown potion tier")
	ErrNoPotion           = errors.New("no potion of that tier in inventory")
	ErrInsufficientGold   = errors.New("insufficient gold")
	ErrMalformedResult    = errors.New("malformed match result")
	ErrInvalidStage       = errors.New("dungeon stage out of range")
)

// Playback pacing for the client-driven simulation ticks.
const (
	tickInterval   = 2 * time.Second
	eventsPerTick  = 2
	roundOpenDelay = 15 * time.Second
)

// TournamentService owns the tournament state machine. Every action locks
// the (user, type) pair, loads the authoritative record, mutates it in
// memory, persists, and only then refreshes the cache mirror — nothing else
// writes tournament slots.
type TournamentService struct {
	Store  UserStore
	Notify *Broadcaster

	cache *tournamentCache
	locks userLocks
}

func NewTournamentService(store UserStore, notify *Broadcaster) *TournamentService {
	return &TournamentService{
		Store:  store,
		Notify: notify,
		cache:  newTournamentCache(),
	}
}

// withSlot runs fn under the per-user-type lock. fn returns whether the
// record was mutated; persistence and cache refresh happen only on mutation,
// and any error from fn aborts before anything is written.
func (s *TournamentService) withSlot(userID string, typ models.TournamentType, fn func(u *models.UserRecord) (bool, error)) error {
	unlock := s.locks.lock(userID, typ)
	defer unlock()

	u, err := s.Store.Get(userID)
	if err != nil {
		return err
	}
	mutated, err := fn(u)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}
	if err := s.Store.Update(u); err != nil {
		return err
	}
	if slot := u.TournamentSlot(typ); slot != nil {
		s.cache.put(userID, typ, *slot)
	}
	s.publish(userID, typ, u.TournamentSlot(typ))
	return nil
}

func (s *TournamentService) publish(userID string, typ models.TournamentType, slot **models.TournamentState) {
	if s.Notify == nil || slot == nil {
		return
	}
	status := ""
	if *slot != nil {
		status = string((*slot).Status)
	}
	s.Notify.Publish(userID, StateEvent{Type: typ, Status: status})
}

// StartSession returns the user's active tournament of the given type,
// creating one when none is eligible to continue. Idempotent: an existing
// non-terminal state (or today's finished one) is returned as-is. forceNew
// bypasses the idempotency and always rebuilds, discarding any prior state.
func (s *TournamentService) StartSession(userID string, typ models.TournamentType, forceNew bool) (*models.TournamentState, error) {
	spec, ok := models.SpecFor(typ)
	if !ok || typ == models.TypeDungeon {
		return nil, ErrInvalidType
	}

	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		if u.League < spec.MinLeague {
			return false, ErrLeagueTooLow
		}
		slot := u.TournamentSlot(typ)
		if !forceNew && *slot != nil {
			if !(*slot).Status.Terminal() || playedToday(u, typ) {
				result = *slot
				return false, nil
			}
		}

		pool, err := s.Store.LeagueOpponents(u.League, u.ID, spec.Entrants-1)
		if err != nil {
			log.Printf("[ARENA] opponent pool query failed for %s: %v, filling with bots", userID, err)
			pool = nil
		}
		st, err := BuildTournament(u, pool, typ)
		if err != nil {
			return false, err
		}
		*slot = st
		*u.RewardClaimedFlag(typ) = false
		u.TournamentScore = 0
		now := time.Now()
		*u.LastPlayedAt(typ) = &now
		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartDungeonStage opens a staged single-player attempt on the shared
// engine. Unlike the daily types it is always rebuilt on demand.
func (s *TournamentService) StartDungeonStage(userID string, stage int) (*models.TournamentState, error) {
	if stage < 1 || stage > MaxDungeonStage {
		return nil, ErrInvalidStage
	}
	var result *models.TournamentState
	err := s.withSlot(userID, models.TypeDungeon, func(u *models.UserRecord) (bool, error) {
		slot := u.TournamentSlot(models.TypeDungeon)
		if *slot != nil && !(*slot).Status.Terminal() {
			result = *slot
			return false, nil
		}
		st := BuildDungeonStage(u, stage)
		*slot = st
		*u.RewardClaimedFlag(models.TypeDungeon) = false
		now := time.Now()
		*u.LastPlayedAt(models.TypeDungeon) = &now
		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartRound refreshes the field for the upcoming round: the entrant's
// originalStats is recomputed from current equipment, everyone else resets
// to the frozen snapshot, bots roll fresh conditions, and the entrant only
// rolls when unset — a condition restored via a consumable is never
// overwritten.
func (s *TournamentService) StartRound(userID string, typ models.TournamentType) (*models.TournamentState, error) {
	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status != models.StatusBracketReady && st.Status != models.StatusRoundComplete {
			return false, ErrWrongStatus
		}
		if st.NextRoundStartTime != nil && time.Now().Before(*st.NextRoundStartTime) {
			return false, ErrRoundNotReady
		}
		st.NextRoundStartTime = nil

		for i := range st.Players {
			p := &st.Players[i]
			if i == models.UserIndex {
				p.OriginalStats = ComputeEffectiveStats(u)
				p.ResetStats()
				if !p.ConditionValid() {
					rollCondition(p)
				}
				continue
			}
			p.ResetStats()
			rollCondition(p)
		}
		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartMatch locates the entrant's next unfinished match in the active
// round, re-synchronizes both combatants from their frozen stats, arms a
// fresh simulation seed, and moves to round_in_progress.
func (s *TournamentService) StartMatch(userID string, typ models.TournamentType) (*models.TournamentState, error) {
	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status != models.StatusBracketReady && st.Status != models.StatusRoundComplete {
			return false, ErrWrongStatus
		}
		// Same inter-round gate as StartRound; starting the match directly
		// must not skip the cooldown.
		if st.NextRoundStartTime != nil && time.Now().Before(*st.NextRoundStartTime) {
			return false, ErrRoundNotReady
		}
		cursor, ok := st.PendingUserMatch()
		if !ok {
			return false, ErrNoPendingMatch
		}

		m := st.MatchAt(&cursor)
		p1, p2 := &st.Players[m.P1], &st.Players[m.P2]
		p1.ResetStats()
		p2.ResetStats()
		normalizeCondition(p1)
		normalizeCondition(p2)

		seed := rand.Int63()
		st.SimulationSeed = &seed
		st.CurrentSimulatingMatch = &cursor
		st.Status = models.StatusRoundInProgress
		now := time.Now()
		st.LastTickAt = &now

		// Pre-compute the authoritative playback so ticks have events to
		// reveal; completion re-runs the same seed for verification.
		outcome := Simulate(seed, p1, p2)
		m.Commentary = outcome.Commentary
		m.RevealedEvents = 0
		p1.ResetStats()
		p2.ResetStats()

		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdvanceTick progresses the in-flight match's playback. The simulation is
// time-paced: calls arriving before the tick interval has elapsed are a
// successful no-op. Returns whether the playback advanced.
func (s *TournamentService) AdvanceTick(userID string, typ models.TournamentType, clientTS time.Time) (*models.TournamentState, bool, error) {
	var (
		result   *models.TournamentState
		advanced bool
	)
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status != models.StatusRoundInProgress || st.CurrentSimulatingMatch == nil {
			return false, ErrWrongStatus
		}
		result = st

		// Gate on server wall clock; the client timestamp is advisory and
		// logged only when it drifts suspiciously far.
		now := time.Now()
		if !clientTS.IsZero() && clientTS.Sub(now) > time.Minute {
			log.Printf("[ARENA] client clock ahead by %s for user %s", clientTS.Sub(now), userID)
		}
		if st.LastTickAt != nil && now.Sub(*st.LastTickAt) < tickInterval {
			return false, nil
		}

		m := st.MatchAt(st.CurrentSimulatingMatch)
		if m == nil || m.RevealedEvents >= len(m.Commentary) {
			return false, nil
		}
		m.RevealedEvents += eventsPerTick
		if m.RevealedEvents > len(m.Commentary) {
			m.RevealedEvents = len(m.Commentary)
		}
		st.LastTickAt = &now
		advanced = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, advanced, nil
}

// CompleteSimulation accepts a client-submitted match result, resolves it
// through verify-or-trust, and runs round-completion bookkeeping. Duplicate
// submissions for an already-finished match are a successful no-op, because
// network retries can replay this call.
func (s *TournamentService) CompleteSimulation(userID string, typ models.TournamentType, client ClientResult) (*models.TournamentState, error) {
	if client.WinnerID == "" {
		return nil, ErrMalformedResult
	}
	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		slot := u.TournamentSlot(typ)
		if slot == nil {
			return false, ErrInvalidType
		}
		st := *slot
		if st == nil {
			// A missing slot right after a completion looks like a retried
			// duplicate when the user played this type today; only a slot
			// that never existed is an error.
			if playedToday(u, typ) {
				return false, nil
			}
			return false, ErrTournamentNotFound
		}

		cursor := st.CurrentSimulatingMatch
		if cursor == nil {
			result = st
			return false, nil
		}
		m := st.MatchAt(cursor)
		if m == nil || m.IsFinished {
			result = st
			return false, nil
		}

		p1, p2 := &st.Players[m.P1], &st.Players[m.P2]
		p1.ResetStats()
		p2.ResetStats()
		normalizeCondition(p1)
		normalizeCondition(p2)
		outcome, err := ResolveResult(st.SimulationSeed, p1, p2, client)
		if err != nil {
			return false, err
		}
		applyOutcome(st, cursor, outcome)

		if winnerIdx(m) == models.UserIndex {
			trickle := matchTrickleReward(typ)
			st.AccumulatedGold += trickle.Gold
			st.AccumulatedMaterials += trickle.Materials
			st.AccumulatedEquipmentBoxes += trickle.EquipmentBoxes
		}

		played := cursor.RoundIndex
		st.CurrentSimulatingMatch = nil
		st.SimulationSeed = nil
		st.LastTickAt = nil

		s.advanceAfterMatch(u, st, played)
		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ForfeitTournament resolves every remaining obligation as a loss and exits
// to the terminal forfeited state. Safe to call mid-simulation.
func (s *TournamentService) ForfeitTournament(userID string, typ models.TournamentType) error {
	return s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status.Terminal() {
			return false, nil
		}
		forfeitUserMatches(st)
		st.CurrentSimulatingMatch = nil
		st.SimulationSeed = nil
		st.LastTickAt = nil
		resolveRemainingMatches(st)
		s.finish(u, st, models.StatusForfeited)
		return true, nil
	})
}

// ForfeitCurrentMatch resolves only the entrant's current (or next pending)
// match as a loss and lets normal bookkeeping decide where that leaves the
// tournament.
func (s *TournamentService) ForfeitCurrentMatch(userID string, typ models.TournamentType) (*models.TournamentState, error) {
	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status.Terminal() {
			return false, ErrWrongStatus
		}

		cursor := st.CurrentSimulatingMatch
		if cursor == nil {
			if c, ok := st.PendingUserMatch(); ok {
				cursor = &c
			} else {
				return false, ErrNoPendingMatch
			}
		}
		m := st.MatchAt(cursor)
		if m == nil || m.IsFinished {
			return false, ErrNoPendingMatch
		}
		resolveAsLossFor(st, cursor, models.UserIndex)

		played := cursor.RoundIndex
		st.CurrentSimulatingMatch = nil
		st.SimulationSeed = nil
		st.LastTickAt = nil

		s.advanceAfterMatch(u, st, played)
		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UseConditionPotion consumes one potion of the tier plus its gold cost and
// raises the entrant's condition by a random amount from the tier's range,
// capped at the maximum. Not permitted while a match is running.
func (s *TournamentService) UseConditionPotion(userID string, typ models.TournamentType, tier string) (*models.TournamentState, error) {
	potionSpec, ok := PotionTierFor(tier)
	if !ok {
		return nil, ErrUnknownPotion
	}
	var result *models.TournamentState
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if st.Status == models.StatusRoundInProgress {
			return false, ErrMatchInProgress
		}
		if st.Status.Terminal() {
			return false, ErrWrongStatus
		}

		entrant := st.UserParticipant()
		if !entrant.ConditionValid() {
			rollCondition(entrant)
		}
		if *entrant.Condition >= models.ConditionMax {
			return false, ErrConditionFull
		}
		if u.ConditionPotions[tier] <= 0 {
			return false, ErrNoPotion
		}
		if u.Gold < potionSpec.GoldCost {
			return false, ErrInsufficientGold
		}

		u.ConditionPotions[tier]--
		u.Gold -= potionSpec.GoldCost
		boost := potionSpec.MinBoost + rand.Intn(potionSpec.MaxBoost-potionSpec.MinBoost+1)
		cond := *entrant.Condition + boost
		if cond > models.ConditionMax {
			cond = models.ConditionMax
		}
		entrant.Condition = &cond

		result = st
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClaimReward grants the rank reward exactly once for a finished tournament.
// The claimed flag is verified before any mutation and persisted with the
// grant in the same update.
func (s *TournamentService) ClaimReward(userID string, typ models.TournamentType) (*RewardSummary, error) {
	var summary *RewardSummary
	err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		st, err := requireState(u, typ)
		if err != nil {
			return false, err
		}
		if !st.Status.Terminal() {
			return false, ErrNotComplete
		}
		claimed := u.RewardClaimedFlag(typ)
		if *claimed {
			return false, ErrAlreadyClaimed
		}

		rank := RankOf(st.Players, models.UserIndex)
		entry := RewardForRank(typ, rank)
		summary = &RewardSummary{
			Rank:           rank,
			Gold:           entry.Gold + st.AccumulatedGold,
			Materials:      entry.Materials + st.AccumulatedMaterials,
			EquipmentBoxes: entry.EquipmentBoxes + st.AccumulatedEquipmentBoxes,
			ScoreDelta:     ScoreForRank(typ, rank),
		}
		ApplyRewards(u, *summary)
		*claimed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ClearSession nulls out one type's slot.
func (s *TournamentService) ClearSession(userID string, typ models.TournamentType) error {
	if _, ok := models.SpecFor(typ); !ok {
		return ErrInvalidType
	}
	return s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
		*u.TournamentSlot(typ) = nil
		s.cache.invalidate(userID, typ)
		return true, nil
	})
}

// ClearAllSessions nulls out every slot, dungeon included.
func (s *TournamentService) ClearAllSessions(userID string) error {
	for _, typ := range append([]models.TournamentType{models.TypeDungeon}, models.AllTypes...) {
		if err := s.ClearSession(userID, typ); err != nil {
			return err
		}
	}
	s.cache.invalidateUser(userID)
	return nil
}

// ExpireStaleSessions forfeits any daily tournament the user abandoned
// mid-run on a previous day, so the slot is terminal (and claimable) before
// today's session can replace it. Returns how many slots were expired.
func (s *TournamentService) ExpireStaleSessions(userID string) (int, error) {
	expired := 0
	for _, typ := range models.AllTypes {
		typ := typ
		err := s.withSlot(userID, typ, func(u *models.UserRecord) (bool, error) {
			slot := u.TournamentSlot(typ)
			if *slot == nil || (*slot).Status.Terminal() || playedToday(u, typ) {
				return false, nil
			}
			forfeitUserMatches(*slot)
			(*slot).CurrentSimulatingMatch = nil
			(*slot).SimulationSeed = nil
			resolveRemainingMatches(*slot)
			s.finish(u, *slot, models.StatusForfeited)
			expired++
			return true, nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// SessionState reads the current state, serving the cache mirror when warm
// and falling back to the authoritative record.
func (s *TournamentService) SessionState(userID string, typ models.TournamentType) (*models.TournamentState, error) {
	if _, ok := models.SpecFor(typ); !ok {
		return nil, ErrInvalidType
	}
	if st, ok := s.cache.get(userID, typ); ok {
		return st, nil
	}
	u, err := s.Store.Get(userID)
	if err != nil {
		return nil, err
	}
	st := *u.TournamentSlot(typ)
	if st == nil {
		return nil, ErrTournamentNotFound
	}
	s.cache.put(userID, typ, st)
	return st, nil
}

// requireState fetches the slot for a known type, ErrTournamentNotFound when
// empty.
func requireState(u *models.UserRecord, typ models.TournamentType) (*models.TournamentState, error) {
	slot := u.TournamentSlot(typ)
	if slot == nil {
		return nil, ErrInvalidType
	}
	if *slot == nil {
		return nil, ErrTournamentNotFound
	}
	return *slot, nil
}

func playedToday(u *models.UserRecord, typ models.TournamentType) bool {
	last := u.LastPlayedAt(typ)
	if last == nil || *last == nil {
		return false
	}
	y1, m1, d1 := (*last).Date()
	y2, m2, d2 := time.Now().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
