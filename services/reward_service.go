package services

import (
	"board-arena-system/models"
)

// PotionTier configures one condition-potion consumable: its boost range and
// the gold surcharge for using it.
type PotionTier struct {
	MinBoost int
	MaxBoost int
	GoldCost int
}

var potionTiers = map[string]PotionTier{
	"small": {MinBoost: 5, MaxBoost: 15, GoldCost: 100},
	"large": {MinBoost: 15, MaxBoost: 30, GoldCost: 250},
}

// PotionTierFor returns the tier config, false for unknown tiers.
func PotionTierFor(name string) (PotionTier, bool) {
	t, ok := potionTiers[name]
	return t, ok
}

// RewardSummary is what a successful claim returns: the rank-table grant
// plus the trickle rewards accumulated match by match.
type RewardSummary struct {
	Rank           int `json:"rank"`
	Gold           int `json:"gold"`
	Materials      int `json:"materials"`
	EquipmentBoxes int `json:"equipment_boxes"`
	ScoreDelta     int `json:"score_delta"`
}

// ApplyRewards grants a claim to the user's currency and inventory. The
// caller persists the record before responding; the grant is never
// fire-and-forget.
func ApplyRewards(u *models.UserRecord, summary RewardSummary) {
	u.Gold += summary.Gold
	u.Materials += summary.Materials
	u.EquipmentBoxes += summary.EquipmentBoxes
}

// matchTrickleReward is the small per-win grant accumulated on the tournament
// state and paid out with the final claim.
func matchTrickleReward(typ models.TournamentType) models.RewardEntry {
	spec, ok := models.SpecFor(typ)
	if !ok {
		return models.RewardEntry{}
	}
	return spec.Trickle
}
