package models

import (
	"time"
)

// UserRecord is the authoritative persisted record the engine reads and
// mutates. The three daily tournament slots (plus the dungeon slot) are
// embedded JSONB columns — a tournament never exists outside its owner's row.
type UserRecord struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	DisplayName string `gorm:"index;not null" json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	League      int    `gorm:"default:1" json:"league"`

	// Currency and inventory counters mutated by reward grants.
	Gold           int `gorm:"default:0" json:"gold"`
	Materials      int `gorm:"default:0" json:"materials"`
	EquipmentBoxes int `gorm:"default:0" json:"equipment_boxes"`

	// ConditionPotions holds consumable counts keyed by potion tier.
	ConditionPotions PotionInventory `gorm:"serializer:json;type:jsonb" json:"condition_potions"`

	// Inputs to effective-stat aggregation.
	BaseStats  StatVector `gorm:"serializer:json;type:jsonb" json:"base_stats"`
	StatPoints int        `gorm:"default:0" json:"stat_points"`
	Items      []Item     `gorm:"serializer:json;type:jsonb" json:"items,omitempty"`

	// Tournament slots, one per type.
	NeighborhoodTournament *TournamentState `gorm:"serializer:json;type:jsonb" json:"neighborhood_tournament,omitempty"`
	NationalTournament     *TournamentState `gorm:"serializer:json;type:jsonb" json:"national_tournament,omitempty"`
	WorldTournament        *TournamentState `gorm:"serializer:json;type:jsonb" json:"world_tournament,omitempty"`
	DungeonTournament      *TournamentState `gorm:"serializer:json;type:jsonb" json:"dungeon_tournament,omitempty"`

	// Per-type reward claim flags.
	NeighborhoodRewardClaimed bool `gorm:"default:false" json:"neighborhood_reward_claimed"`
	NationalRewardClaimed     bool `gorm:"default:false" json:"national_reward_claimed"`
	WorldRewardClaimed        bool `gorm:"default:false" json:"world_reward_claimed"`
	DungeonRewardClaimed      bool `gorm:"default:false" json:"dungeon_reward_claimed"`

	// Cross-tournament meta-progression.
	TournamentScore           int `gorm:"default:0" json:"tournament_score"`
	CumulativeTournamentScore int `gorm:"default:0" json:"cumulative_tournament_score"`

	NeighborhoodLastPlayedAt *time.Time `json:"neighborhood_last_played_at,omitempty"`
	NationalLastPlayedAt     *time.Time `json:"national_last_played_at,omitempty"`
	WorldLastPlayedAt        *time.Time `json:"world_last_played_at,omitempty"`
	DungeonLastPlayedAt      *time.Time `json:"dungeon_last_played_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PotionInventory counts condition potions per tier.
type PotionInventory map[string]int

// TournamentSlot returns a pointer to the slot backing the given type, so
// callers read and write through one typed accessor instead of switching on
// the type everywhere. Returns nil for unknown types.
func (u *UserRecord) TournamentSlot(t TournamentType) **TournamentState {
	switch t {
	case TypeNeighborhood:
		return &u.NeighborhoodTournament
	case TypeNational:
		return &u.NationalTournament
	case TypeWorld:
		return &u.WorldTournament
	case TypeDungeon:
		return &u.DungeonTournament
	}
	return nil
}

// RewardClaimedFlag returns a pointer to the per-type claim flag, nil for
// unknown types.
func (u *UserRecord) RewardClaimedFlag(t TournamentType) *bool {
	switch t {
	case TypeNeighborhood:
		return &u.NeighborhoodRewardClaimed
	case TypeNational:
		return &u.NationalRewardClaimed
	case TypeWorld:
		return &u.WorldRewardClaimed
	case TypeDungeon:
		return &u.DungeonRewardClaimed
	}
	return nil
}

// LastPlayedAt returns a pointer to the per-type advisory timestamp, nil for
// unknown types.
func (u *UserRecord) LastPlayedAt(t TournamentType) **time.Time {
	switch t {
	case TypeNeighborhood:
		return &u.NeighborhoodLastPlayedAt
	case TypeNational:
		return &u.NationalLastPlayedAt
	case TypeWorld:
		return &u.WorldLastPlayedAt
	case TypeDungeon:
		return &u.DungeonLastPlayedAt
	}
	return nil
}
