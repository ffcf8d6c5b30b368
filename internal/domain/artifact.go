package domain

import (
	"fmt"
	"time"
)

// ─── Artifacts ──────────────────────────────────────────────────────────────

// Rarity is an ordered artifact tier: common < rare < legendary < mythic.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// Rarities lists every tier from most to least common.
var Rarities = []Rarity{RarityCommon, RarityRare, RarityLegendary, RarityMythic}

// Rank returns the tier's position in Rarities, or -1 if unknown.
func (r Rarity) Rank() int {
	for i, x := range Rarities {
		if x == r {
			return i
		}
	}
	return -1
}

// ParseRarity validates a rarity label.
func ParseRarity(s string) (Rarity, error) {
	r := Rarity(s)
	if r.Rank() < 0 {
		return "", fmt.Errorf("unknown rarity %q", s)
	}
	return r, nil
}

// UnlockCondition restricts an artifact to a moon phase.
type UnlockCondition string

const (
	UnlockNone     UnlockCondition = "none"
	UnlockFullMoon UnlockCondition = "full_moon_only"
	UnlockWaxing   UnlockCondition = "waxing_only"
	UnlockNewMoon  UnlockCondition = "new_moon_only"
	UnlockWaning   UnlockCondition = "waning_only"
)

// Allows reports whether the condition passes during phase.
// Unknown conditions behave like none.
func (u UnlockCondition) Allows(phase MoonPhase) bool {
	switch u {
	case UnlockFullMoon:
		return phase == PhaseFull
	case UnlockWaxing:
		return phase == PhaseWaxing
	case UnlockNewMoon:
		return phase == PhaseNew
	case UnlockWaning:
		return phase == PhaseWaning
	}
	return true
}

// ArtifactDefinition is a catalog entry. Not owned by any user.
type ArtifactDefinition struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Kind            string          `json:"kind"`
	Rarity          Rarity          `json:"rarity"`
	UnlockCondition UnlockCondition `json:"unlock_condition"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UserArtifact links a user to a definition they own.
// Unique per (UserID, DefinitionID).
type UserArtifact struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DefinitionID string    `json:"artifact_definition_id"`
	AcquiredAt   time.Time `json:"acquired_at"`
	Favorite     bool      `json:"is_favorite"`
	Displayed    bool      `json:"is_displayed"`
}
