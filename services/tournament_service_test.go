package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"board-arena-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory UserStore so engine tests run without postgres.
// Get returns a deep copy, matching the isolation a DB read gives.
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.UserRecord
	pool  []models.UserRecord
}

func newMemStore(users ...*models.UserRecord) *memStore {
	s := &memStore{users: map[string]*models.UserRecord{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) Get(id string) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	cp := &models.UserRecord{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *memStore) Update(u *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	cp := &models.UserRecord{}
	if err := json.Unmarshal(raw, cp); err != nil {
		return err
	}
	s.users[u.ID] = cp
	return nil
}

func (s *memStore) LeagueOpponents(league int, excludeID string, limit int) ([]models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.UserRecord{}
	for _, u := range s.pool {
		if u.ID == excludeID || u.League != league {
			continue
		}
		out = append(out, u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// mutate edits the stored record directly, the way a test sets up
// preconditions the public API would not produce.
func (s *memStore) mutate(t *testing.T, id string, fn func(u *models.UserRecord)) {
	t.Helper()
	u, err := s.Get(id)
	require.NoError(t, err)
	fn(u)
	require.NoError(t, s.Update(u))
}

func testUser(id string, league int) *models.UserRecord {
	return &models.UserRecord{
		ID:          id,
		DisplayName: "Player " + id,
		League:      league,
		BaseStats: models.StatVector{
			Attack: 30, Defense: 30, Accuracy: 30,
			Evasion: 30, Concentration: 30, Stamina: 30,
		},
		ConditionPotions: models.PotionInventory{},
	}
}

// strongUser has stats so far above bot tiers that the server simulation
// always resolves in their favor, which keeps multi-round tests
// deterministic.
func strongUser(id string) *models.UserRecord {
	u := testUser(id, 1)
	u.BaseStats = models.StatVector{
		Attack: 500, Defense: 500, Accuracy: 500,
		Evasion: 500, Concentration: 500, Stamina: 500,
	}
	return u
}

func newTestService(users ...*models.UserRecord) (*TournamentService, *memStore) {
	store := newMemStore(users...)
	return NewTournamentService(store, NewBroadcaster()), store
}

// clearRoundGate removes the between-round delay so tests advance without
// sleeping.
func clearRoundGate(t *testing.T, store *memStore, userID string, typ models.TournamentType) {
	t.Helper()
	store.mutate(t, userID, func(u *models.UserRecord) {
		if st := *u.TournamentSlot(typ); st != nil {
			st.NextRoundStartTime = nil
		}
	})
}

// winningResult claims the entrant won; scores are reconciled server-side
// against the seeded re-simulation anyway.
func winningResult(userID string) ClientResult {
	return ClientResult{
		TimeElapsed:  120,
		Player1Score: 60,
		Player2Score: 40,
		WinnerID:     userID,
	}
}

func TestStartSessionBuildsBracket(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	st, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	assert.Equal(t, models.StatusBracketReady, st.Status)
	assert.Len(t, st.Players, 6)
	assert.Equal(t, "u1", st.Players[models.UserIndex].ID)
	assert.Len(t, st.Rounds, 5)
	assert.Equal(t, 1, st.CurrentRoundRobinRound)
	for _, p := range st.Players[1:] {
		assert.True(t, p.IsBot, "empty pool should be filled with bots")
	}
}

func TestStartSessionUsesLeaguePool(t *testing.T) {
	svc, store := newTestService(testUser("u1", 1))
	store.pool = []models.UserRecord{
		*testUser("rival-a", 1),
		*testUser("rival-b", 1),
		*testUser("wrong-league", 2),
	}

	st, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	real := 0
	for _, p := range st.Players[1:] {
		if !p.IsBot {
			real++
			assert.NotEqual(t, "wrong-league", p.ID)
		}
	}
	assert.Equal(t, 2, real, "both same-league rivals should be drafted before bots")
}

func TestStartSessionLeagueGate(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	_, err := svc.StartSession("u1", models.TypeWorld, false)
	assert.ErrorIs(t, err, ErrLeagueTooLow)
}

func TestStartSessionRejectsDungeonAndUnknown(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	_, err := svc.StartSession("u1", models.TypeDungeon, false)
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.StartSession("u1", models.TournamentType("galactic"), false)
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestStartSessionIdempotent(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	first, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	second, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat call must return the same tournament")
}

func TestStartSessionForceNewRebuilds(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	first, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	second, err := svc.StartSession("u1", models.TypeNeighborhood, true)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, models.StatusBracketReady, second.Status)
}

func TestStartMatchArmsSimulation(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	st, err := svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRoundInProgress, st.Status)
	require.NotNil(t, st.CurrentSimulatingMatch)
	require.NotNil(t, st.SimulationSeed)

	m := st.MatchAt(st.CurrentSimulatingMatch)
	require.NotNil(t, m)
	assert.True(t, m.IsUserMatch)
	assert.NotEmpty(t, m.Commentary, "playback must be precomputed for ticks")
	assert.Zero(t, m.RevealedEvents)

	// Arming twice without finishing is a status violation.
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrWrongStatus)
}

func TestAdvanceTickPacing(t *testing.T) {
	svc, store := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	// Immediately after arming, the interval has not elapsed.
	_, advanced, err := svc.AdvanceTick("u1", models.TypeNeighborhood, time.Now())
	require.NoError(t, err)
	assert.False(t, advanced)

	// Backdate the last tick; the next call must reveal events.
	store.mutate(t, "u1", func(u *models.UserRecord) {
		st := *u.TournamentSlot(models.TypeNeighborhood)
		past := time.Now().Add(-2 * tickInterval)
		st.LastTickAt = &past
	})
	st, advanced, err := svc.AdvanceTick("u1", models.TypeNeighborhood, time.Now())
	require.NoError(t, err)
	assert.True(t, advanced)
	m := st.MatchAt(st.CurrentSimulatingMatch)
	assert.Equal(t, eventsPerTick, m.RevealedEvents)
}

func TestAdvanceTickWrongStatus(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	_, _, err = svc.AdvanceTick("u1", models.TypeNeighborhood, time.Now())
	assert.ErrorIs(t, err, ErrWrongStatus)
}

func TestCompleteSimulationAdvancesRound(t *testing.T) {
	svc, _ := newTestService(strongUser("u1"))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	st, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusRoundComplete, st.Status)
	assert.Equal(t, 2, st.CurrentRoundRobinRound)
	assert.Nil(t, st.CurrentSimulatingMatch)
	assert.Nil(t, st.SimulationSeed)
	assert.NotNil(t, st.NextRoundStartTime)
	assert.True(t, st.Rounds[0].Finished(), "server must auto-resolve the rest of the cycle")
	assert.Equal(t, 1, st.Players[models.UserIndex].Wins)
	assert.Positive(t, st.AccumulatedGold, "a won match trickles gold")
}

func TestCompleteSimulationDuplicateIsNoOp(t *testing.T) {
	svc, _ := newTestService(strongUser("u1"))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	first, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
	require.NoError(t, err)
	second, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
	require.NoError(t, err)

	assert.Equal(t, first.Players[models.UserIndex].Wins, second.Players[models.UserIndex].Wins)
	assert.Equal(t, first.AccumulatedGold, second.AccumulatedGold, "retry must not double-grant")
}

func TestCompleteSimulationMalformed(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))
	_, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, ClientResult{})
	assert.ErrorIs(t, err, ErrMalformedResult)
}

func TestStartMatchHonorsRoundCooldown(t *testing.T) {
	svc, store := newTestService(strongUser("u1"))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	clearRoundGate(t, store, "u1", models.TypeNeighborhood)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	st, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
	require.NoError(t, err)
	require.Equal(t, models.StatusRoundComplete, st.Status)
	require.NotNil(t, st.NextRoundStartTime)

	// Arming the next match directly must wait out the same cooldown that
	// gates StartRound.
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrRoundNotReady)

	clearRoundGate(t, store, "u1", models.TypeNeighborhood)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	assert.NoError(t, err)
}

func TestCompleteSimulationRejectsUnknownWinnerID(t *testing.T) {
	svc, store := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	_, err = svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("somebody-else"))
	assert.ErrorIs(t, err, ErrMalformedResult)

	// The rejected result must leave the armed match untouched.
	u, err := store.Get("u1")
	require.NoError(t, err)
	st := *u.TournamentSlot(models.TypeNeighborhood)
	require.NotNil(t, st)
	assert.Equal(t, models.StatusRoundInProgress, st.Status)
	assert.NotNil(t, st.CurrentSimulatingMatch)
	assert.Zero(t, st.Players[models.UserIndex].Wins)
}

func TestCompleteSimulationWithoutTournament(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))
	_, err := svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestRoundRobinFullRun(t *testing.T) {
	svc, store := newTestService(strongUser("u1"))
	st, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	cycles := len(st.Players) - 1
	for i := 0; i < cycles; i++ {
		clearRoundGate(t, store, "u1", models.TypeNeighborhood)
		_, err = svc.StartRound("u1", models.TypeNeighborhood)
		require.NoError(t, err)
		_, err = svc.StartMatch("u1", models.TypeNeighborhood)
		require.NoError(t, err)
		st, err = svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
		require.NoError(t, err)
	}

	assert.Equal(t, models.StatusComplete, st.Status)
	assert.Equal(t, cycles, st.Players[models.UserIndex].Wins)
	assert.Zero(t, st.Players[models.UserIndex].Losses)
	assert.True(t, st.ScoreApplied)
	for _, r := range st.Rounds {
		assert.True(t, r.Finished())
	}
	assert.Equal(t, 1, RankOf(st.Players, models.UserIndex))

	u, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 30, u.TournamentScore, "rank 1 neighborhood score")
	assert.Equal(t, 30, u.CumulativeTournamentScore)
}

func TestEliminationFullRun(t *testing.T) {
	user := strongUser("u1")
	user.League = 2
	svc, store := newTestService(user)

	st, err := svc.StartSession("u1", models.TypeNational, false)
	require.NoError(t, err)
	require.Len(t, st.Players, 8)
	require.Len(t, st.Rounds, 3)

	for i := 0; i < 3; i++ {
		clearRoundGate(t, store, "u1", models.TypeNational)
		_, err = svc.StartRound("u1", models.TypeNational)
		require.NoError(t, err)
		_, err = svc.StartMatch("u1", models.TypeNational)
		require.NoError(t, err)
		st, err = svc.CompleteSimulation("u1", models.TypeNational, winningResult("u1"))
		require.NoError(t, err)
	}

	assert.Equal(t, models.StatusComplete, st.Status)
	final := st.Rounds[len(st.Rounds)-1].Matches[0]
	assert.True(t, final.IsFinished)
	assert.Equal(t, models.UserIndex, final.Winner)

	u, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 60, u.TournamentScore, "rank 1 national score")
}

func TestMatchTrickleRewardTable(t *testing.T) {
	assert.Equal(t, models.RewardEntry{Gold: 50, Materials: 1}, matchTrickleReward(models.TypeNeighborhood))
	assert.Equal(t, models.RewardEntry{Gold: 55, Materials: 1}, matchTrickleReward(models.TypeNational))
	assert.Equal(t, models.RewardEntry{Gold: 62, Materials: 1, EquipmentBoxes: 1}, matchTrickleReward(models.TypeWorld))
	assert.Equal(t, models.RewardEntry{}, matchTrickleReward(models.TournamentType("galactic")))
}

func TestWorldWinTricklesEquipmentBox(t *testing.T) {
	user := strongUser("u1")
	user.League = 3
	svc, _ := newTestService(user)

	_, err := svc.StartSession("u1", models.TypeWorld, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeWorld)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeWorld)
	require.NoError(t, err)

	st, err := svc.CompleteSimulation("u1", models.TypeWorld, winningResult("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, st.AccumulatedEquipmentBoxes)
}

func TestForfeitTournament(t *testing.T) {
	svc, store := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	require.NoError(t, svc.ForfeitTournament("u1", models.TypeNeighborhood))

	u, err := store.Get("u1")
	require.NoError(t, err)
	st := *u.TournamentSlot(models.TypeNeighborhood)
	assert.Equal(t, models.StatusForfeited, st.Status)
	assert.Nil(t, st.CurrentSimulatingMatch)
	assert.Equal(t, len(st.Rounds), st.Players[models.UserIndex].Losses,
		"every cycle counts as a loss")
	for _, r := range st.Rounds {
		assert.True(t, r.Finished(), "forfeit must leave a fully resolved bracket")
	}
	assert.True(t, st.ScoreApplied)

	// A second forfeit is a no-op, not an error.
	assert.NoError(t, svc.ForfeitTournament("u1", models.TypeNeighborhood))
}

func TestForfeitCurrentMatchKeepsTournamentAlive(t *testing.T) {
	svc, _ := newTestService(strongUser("u1"))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	st, err := svc.ForfeitCurrentMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	assert.Equal(t, models.StatusRoundComplete, st.Status)
	assert.Equal(t, 1, st.Players[models.UserIndex].Losses)
	assert.Zero(t, st.AccumulatedGold, "a conceded match trickles nothing")
}

func TestForfeitCurrentMatchInEliminationEndsRun(t *testing.T) {
	user := strongUser("u1")
	user.League = 2
	svc, _ := newTestService(user)
	_, err := svc.StartSession("u1", models.TypeNational, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNational)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNational)
	require.NoError(t, err)

	st, err := svc.ForfeitCurrentMatch("u1", models.TypeNational)
	require.NoError(t, err)

	assert.Equal(t, models.StatusEliminated, st.Status)
	for _, r := range st.Rounds {
		assert.True(t, r.Finished(), "bracket plays out for final ranking")
	}
}

func TestUseConditionPotion(t *testing.T) {
	user := testUser("u1", 1)
	user.Gold = 1000
	user.ConditionPotions = models.PotionInventory{"small": 2}
	svc, store := newTestService(user)
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	// Pin the entrant's condition low so the boost cannot hit the cap.
	store.mutate(t, "u1", func(u *models.UserRecord) {
		st := *u.TournamentSlot(models.TypeNeighborhood)
		low := models.ConditionMin
		st.Players[models.UserIndex].Condition = &low
	})

	st, err := svc.UseConditionPotion("u1", models.TypeNeighborhood, "small")
	require.NoError(t, err)

	cond := *st.Players[models.UserIndex].Condition
	assert.GreaterOrEqual(t, cond, models.ConditionMin+5)
	assert.LessOrEqual(t, cond, models.ConditionMin+15)

	u, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.ConditionPotions["small"])
	assert.Equal(t, 900, u.Gold)
}

func TestUseConditionPotionErrors(t *testing.T) {
	user := testUser("u1", 1)
	user.Gold = 50
	user.ConditionPotions = models.PotionInventory{"small": 1}
	svc, store := newTestService(user)
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	store.mutate(t, "u1", func(u *models.UserRecord) {
		st := *u.TournamentSlot(models.TypeNeighborhood)
		low := models.ConditionMin
		st.Players[models.UserIndex].Condition = &low
	})

	_, err = svc.UseConditionPotion("u1", models.TypeNeighborhood, "mega")
	assert.ErrorIs(t, err, ErrUnknownPotion)

	_, err = svc.UseConditionPotion("u1", models.TypeNeighborhood, "large")
	assert.ErrorIs(t, err, ErrNoPotion)

	_, err = svc.UseConditionPotion("u1", models.TypeNeighborhood, "small")
	assert.ErrorIs(t, err, ErrInsufficientGold)

	// At full condition, the potion is refused before any spend.
	store.mutate(t, "u1", func(u *models.UserRecord) {
		u.Gold = 1000
		st := *u.TournamentSlot(models.TypeNeighborhood)
		full := models.ConditionMax
		st.Players[models.UserIndex].Condition = &full
	})
	_, err = svc.UseConditionPotion("u1", models.TypeNeighborhood, "small")
	assert.ErrorIs(t, err, ErrConditionFull)
}

func TestClaimRewardOnce(t *testing.T) {
	svc, store := newTestService(strongUser("u1"))
	st, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	_, err = svc.ClaimReward("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrNotComplete)

	cycles := len(st.Players) - 1
	for i := 0; i < cycles; i++ {
		clearRoundGate(t, store, "u1", models.TypeNeighborhood)
		_, err = svc.StartRound("u1", models.TypeNeighborhood)
		require.NoError(t, err)
		_, err = svc.StartMatch("u1", models.TypeNeighborhood)
		require.NoError(t, err)
		st, err = svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
		require.NoError(t, err)
	}

	summary, err := svc.ClaimReward("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rank)
	assert.Equal(t, 1500+st.AccumulatedGold, summary.Gold)
	assert.Equal(t, 10+st.AccumulatedMaterials, summary.Materials)
	assert.Equal(t, 30, summary.ScoreDelta)

	u, err := store.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, summary.Gold, u.Gold)
	assert.Equal(t, summary.Materials, u.Materials)

	_, err = svc.ClaimReward("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestDungeonStageRun(t *testing.T) {
	svc, _ := newTestService(strongUser("u1"))

	_, err := svc.StartDungeonStage("u1", 0)
	assert.ErrorIs(t, err, ErrInvalidStage)
	_, err = svc.StartDungeonStage("u1", MaxDungeonStage+1)
	assert.ErrorIs(t, err, ErrInvalidStage)

	st, err := svc.StartDungeonStage("u1", 3)
	require.NoError(t, err)
	require.NotNil(t, st.CurrentStageAttempt)
	assert.Equal(t, 3, st.CurrentStageAttempt.Stage)
	require.Len(t, st.Players, 2)
	assert.Equal(t, "Stage 3 Keeper", st.Players[1].Name)

	_, err = svc.StartRound("u1", models.TypeDungeon)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeDungeon)
	require.NoError(t, err)
	st, err = svc.CompleteSimulation("u1", models.TypeDungeon, winningResult("u1"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusComplete, st.Status)

	// A finished attempt lets the next stage be opened immediately.
	next, err := svc.StartDungeonStage("u1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, next.CurrentStageAttempt.Stage)
}

func TestSessionStateCacheAndFallback(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))

	_, err := svc.SessionState("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	created, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	st, err := svc.SessionState("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	assert.Equal(t, created.ID, st.ID)
}

func TestClearSessions(t *testing.T) {
	svc, _ := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	require.NoError(t, svc.ClearAllSessions("u1"))

	_, err = svc.SessionState("u1", models.TypeNeighborhood)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestExpireStaleSessions(t *testing.T) {
	svc, store := newTestService(testUser("u1", 1))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)

	// Played today: nothing to expire.
	n, err := svc.ExpireStaleSessions("u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Backdate to yesterday; the abandoned run must be closed out.
	store.mutate(t, "u1", func(u *models.UserRecord) {
		yesterday := time.Now().Add(-36 * time.Hour)
		u.NeighborhoodLastPlayedAt = &yesterday
	})
	n, err = svc.ExpireStaleSessions("u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	u, err := store.Get("u1")
	require.NoError(t, err)
	st := *u.TournamentSlot(models.TypeNeighborhood)
	assert.Equal(t, models.StatusForfeited, st.Status)
}

func TestConcurrentCompletionsSingleGrant(t *testing.T) {
	svc, store := newTestService(strongUser("u1"))
	_, err := svc.StartSession("u1", models.TypeNeighborhood, false)
	require.NoError(t, err)
	_, err = svc.StartRound("u1", models.TypeNeighborhood)
	require.NoError(t, err)
	_, err = svc.StartMatch("u1", models.TypeNeighborhood)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CompleteSimulation("u1", models.TypeNeighborhood, winningResult("u1"))
		}()
	}
	wg.Wait()

	u, err := store.Get("u1")
	require.NoError(t, err)
	st := *u.TournamentSlot(models.TypeNeighborhood)
	assert.Equal(t, 1, st.Players[models.UserIndex].Wins, "racing retries must settle exactly one match")
}
