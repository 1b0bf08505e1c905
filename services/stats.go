package services

import (
	"board-arena-system/models"
)

// LeagueTier configures the stat roll range and nominal item grade for one
// league (or dungeon stage band). Bot generation and league gating read from
// this table.
type LeagueTier struct {
	League       int
	StatMin      int
	StatMax      int
	BonusPoints  int
	NominalGrade models.ItemGrade
}

var leagueTiers = []LeagueTier{
	{League: 1, StatMin: 8, StatMax: 20, BonusPoints: 12, NominalGrade: models.GradeCommon},
	{League: 2, StatMin: 18, StatMax: 34, BonusPoints: 24, NominalGrade: models.GradeUncommon},
	{League: 3, StatMin: 30, StatMax: 52, BonusPoints: 42, NominalGrade: models.GradeRare},
	{League: 4, StatMin: 48, StatMax: 76, BonusPoints: 66, NominalGrade: models.GradeEpic},
	{League: 5, StatMin: 70, StatMax: 110, BonusPoints: 96, NominalGrade: models.GradeLegendary},
}

// TierForLeague clamps out-of-range leagues to the nearest configured tier.
func TierForLeague(league int) LeagueTier {
	if league < 1 {
		league = 1
	}
	if league > len(leagueTiers) {
		league = len(leagueTiers)
	}
	return leagueTiers[league-1]
}

// MaxDungeonStage bounds the staged single-player variant.
const MaxDungeonStage = 50

// TierForStage maps a dungeon stage onto a league tier: ten stages per tier.
func TierForStage(stage int) LeagueTier {
	return TierForLeague((stage-1)/10 + 1)
}

// ComputeEffectiveStats aggregates a user's base stats, allocated stat
// points, and equipped item bonuses into the stat vector a tournament
// snapshots as originalStats. The allocation spread mirrors bot generation:
// points split evenly across the six dimensions, remainder on the leading
// ones.
func ComputeEffectiveStats(u *models.UserRecord) models.StatVector {
	vals := u.BaseStats.AsSlice()
	per := u.StatPoints / models.StatCount
	rem := u.StatPoints % models.StatCount
	for i := range vals {
		vals[i] += per
		if i < rem {
			vals[i]++
		}
	}
	stats := models.FromSlice(vals)
	for _, item := range u.Items {
		stats = stats.Add(item.Bonus)
	}
	return stats
}
