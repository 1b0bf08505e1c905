package services

import (
	"log"

	"board-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// LeagueThresholds: cumulative tournament score required before promotion.
// e.g., league 2 opens at 100 points, league 3 at 400, etc.
var LeagueThresholds = map[int]int{ // league -> min cumulative score
	1: 0,
	2: 100,
	3: 400,
	4: 1200,
	5: 3000,
}

// LeagueForScore returns the highest league a cumulative score qualifies
// for. Leagues are never lost: callers only promote, never demote.
func LeagueForScore(score int) int {
	for league := 5; league >= 1; league-- {
		if score >= LeagueThresholds[league] {
			return league
		}
	}
	return 1
}

// ProgressionService serves the cross-tournament meta-progression reads:
// score leaderboard and per-user standing.
type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// LeaderboardEntry is one row of the cumulative-score leaderboard.
type LeaderboardEntry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	League      int    `json:"league"`
	Score       int    `json:"score"`
	Position    int    `json:"position"`
}

// GetLeaderboard returns the top users by cumulative tournament score.
func (s *ProgressionService) GetLeaderboard(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var users []models.UserRecord
	err := s.DB.
		Order("cumulative_tournament_score DESC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		log.Printf("ERROR fetching leaderboard: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}

	entries := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		entries[i] = LeaderboardEntry{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			League:      u.League,
			Score:       u.CumulativeTournamentScore,
			Position:    i + 1,
		}
	}
	return c.JSON(entries)
}

// GetStanding returns one user's league, score, and leaderboard position.
func (s *ProgressionService) GetStanding(c *fiber.Ctx) error {
	return s.StandingFor(c, c.Params("user_id"))
}

func (s *ProgressionService) StandingFor(c *fiber.Ctx, userID string) error {
	var u models.UserRecord
	if err := s.DB.First(&u, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(404).JSON(fiber.Map{"error": "user not found"})
		}
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}

	var ahead int64
	s.DB.Model(&models.UserRecord{}).
		Where("cumulative_tournament_score > ?", u.CumulativeTournamentScore).
		Count(&ahead)

	return c.JSON(fiber.Map{
		"user_id":   u.ID,
		"league":    u.League,
		"score":     u.CumulativeTournamentScore,
		"position":  ahead + 1,
		"next_gate": LeagueThresholds[u.League+1],
	})
}
