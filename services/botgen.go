package services

import (
	"fmt"
	"math/rand"

	"board-arena-system/models"

	"github.com/google/uuid"
)

// Bot cosmetics. Purely variety, not balance; the stat rolls carry the
// difficulty.
var botNames = []string{
	"Old Man Seo", "Mrs. Hwang", "Stone Fox", "Quiet Kim", "Iron Bak",
	"River Chung", "Sunhwa", "The Collector", "Night Owl Jo", "Sharp Yoon",
	"Grandpa Moon", "Lazy Tiger", "Miss Aeryn", "Steady Gu", "Whistling Han",
	"Madam Oh", "Twostone Lee", "Cold Tea Shin", "Slowhand Ryu", "Baduk Cat",
}

// chance of rolling one grade above the tier's nominal item grade.
const gradeUpgradeChance = 0.25

// GenerateBot builds a fully-formed synthetic participant for the given tier,
// with stats scaled by the tournament type's multiplier and one item rolled
// per equipment slot. Not deterministic; bots are cosmetic variety, seeded
// only by the runtime random source.
func GenerateBot(tier LeagueTier, multiplier float64) models.Participant {
	stats := rollBotStats(tier, multiplier)
	items := rollBotItems(tier)
	for _, it := range items {
		stats = stats.Add(it.Bonus)
	}
	return models.Participant{
		ID:            "bot-" + uuid.NewString(),
		Name:          botNames[rand.Intn(len(botNames))],
		League:        tier.League,
		IsBot:         true,
		Stats:         stats,
		OriginalStats: stats,
		Items:         items,
	}
}

func rollBotStats(tier LeagueTier, multiplier float64) models.StatVector {
	var vals [models.StatCount]int
	for i := range vals {
		roll := tier.StatMin + rand.Intn(tier.StatMax-tier.StatMin+1)
		vals[i] = int(float64(roll)*multiplier + 0.5)
	}
	// Spread bonus points approximately evenly with bounded jitter, floored
	// at zero per dimension.
	per := tier.BonusPoints / models.StatCount
	for i := range vals {
		jitter := rand.Intn(per+1) - per/2
		add := per + jitter
		if add < 0 {
			add = 0
		}
		vals[i] += add
	}
	return models.FromSlice(vals)
}

func rollBotItems(tier LeagueTier) []models.Item {
	items := make([]models.Item, 0, len(models.EquipmentSlots))
	for i, slot := range models.EquipmentSlots {
		grade := tier.NominalGrade
		if grade < models.GradeLegendary && rand.Float64() < gradeUpgradeChance {
			grade++
		}
		items = append(items, models.Item{
			ID:    fmt.Sprintf("bot-item-%d-%s", i, uuid.NewString()[:8]),
			Slot:  slot,
			Grade: grade,
			Bonus: itemBonusForGrade(grade),
		})
	}
	return items
}

// itemBonusForGrade rolls a small stat bonus scaled by grade, concentrated
// on two random dimensions the way dropped equipment is.
func itemBonusForGrade(grade models.ItemGrade) models.StatVector {
	var vals [models.StatCount]int
	budget := int(grade) * 3
	for k := 0; k < 2; k++ {
		dim := rand.Intn(models.StatCount)
		vals[dim] += budget/2 + rand.Intn(budget/2+1)
	}
	return models.FromSlice(vals)
}
