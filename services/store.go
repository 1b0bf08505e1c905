package services

import (
	"errors"
	"log"
	"sync"

	"board-arena-system/models"

	"gorm.io/gorm"
)

// ErrUserNotFound is returned by UserStore.Get for unknown ids.
var ErrUserNotFound = errors.New("user not found")

// UserStore is the persistence boundary the engine sees: a user-record store
// with get/update plus an opponent-pool query for bracket building.
type UserStore interface {
	Get(id string) (*models.UserRecord, error)
	Update(u *models.UserRecord) error
	// LeagueOpponents returns up to limit other users in the given league,
	// in random order.
	LeagueOpponents(league int, excludeID string, limit int) ([]models.UserRecord, error)
}

// GormUserStore backs UserStore with the postgres user table.
type GormUserStore struct {
	DB *gorm.DB
}

func NewGormUserStore(db *gorm.DB) *GormUserStore {
	return &GormUserStore{DB: db}
}

func (s *GormUserStore) Get(id string) (*models.UserRecord, error) {
	var u models.UserRecord
	if err := s.DB.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *GormUserStore) Update(u *models.UserRecord) error {
	return s.DB.Save(u).Error
}

func (s *GormUserStore) LeagueOpponents(league int, excludeID string, limit int) ([]models.UserRecord, error) {
	var users []models.UserRecord
	err := s.DB.
		Where("league = ? AND id <> ?", league, excludeID).
		Order("RANDOM()").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// tournamentCache is the in-memory fast-path mirror of persisted tournament
// slots. Entries are written only after a successful store update, so a hit
// is always consistent with the authoritative record; it is never a second
// source of truth.
type tournamentCache struct {
	mu      sync.RWMutex
	entries map[string]*models.TournamentState
}

func newTournamentCache() *tournamentCache {
	return &tournamentCache{entries: make(map[string]*models.TournamentState)}
}

func cacheKey(userID string, t models.TournamentType) string {
	return userID + "/" + string(t)
}

func (c *tournamentCache) get(userID string, t models.TournamentType) (*models.TournamentState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.entries[cacheKey(userID, t)]
	return st, ok
}

func (c *tournamentCache) put(userID string, t models.TournamentType, st *models.TournamentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st == nil {
		delete(c.entries, cacheKey(userID, t))
		return
	}
	c.entries[cacheKey(userID, t)] = st
}

func (c *tournamentCache) invalidate(userID string, t models.TournamentType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(userID, t))
}

func (c *tournamentCache) invalidateUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range append([]models.TournamentType{models.TypeDungeon}, models.AllTypes...) {
		delete(c.entries, cacheKey(userID, t))
	}
}

// userLocks serializes every action per (user, type); the engine's
// load-mutate-persist sequences are unsafe under concurrent access.
type userLocks struct {
	locks sync.Map // cacheKey -> *sync.Mutex
}

func (l *userLocks) lock(userID string, t models.TournamentType) func() {
	v, _ := l.locks.LoadOrStore(cacheKey(userID, t), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// AutoMigrate creates the user table. Called from main at startup.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.UserRecord{}); err != nil {
		return err
	}
	log.Println("database schema up to date")
	return nil
}
