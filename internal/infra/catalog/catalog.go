// Package catalog provides the artifact catalog: a built-in default set
// of collectible artifacts and a loader for YAML catalog files, so
// operators can seed their own collections.
package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Entry describes one artifact as written in a catalog file.
type Entry struct {
	Code        string `yaml:"code"`        // Stable key (e.g. "moon_pearl")
	Name        string `yaml:"name"`        // Display name
	Description string `yaml:"description"` // Flavor text
	Kind        string `yaml:"kind"`        // Free-form group: "charm", "relic", "seed"
	Rarity      string `yaml:"rarity"`      // common, rare, legendary, mythic
	Unlock      string `yaml:"unlock"`      // none, full_moon_only, waxing_only, new_moon_only, waning_only
}

// File is the top-level shape of a catalog YAML file.
type File struct {
	Artifacts []Entry `yaml:"artifacts"`
}

// Builtin is the default catalog seeded on first start.
// Order matters: it is the draw order for equal weights.
var Builtin = []Entry{
	{Code: "dew_drop", Name: "Dew Drop", Description: "A bead of night dew that never dries", Kind: "charm", Rarity: "common", Unlock: "none"},
	{Code: "firefly_lantern", Name: "Firefly Lantern", Description: "A jar of sleepy fireflies", Kind: "charm", Rarity: "common", Unlock: "none"},
	{Code: "moss_stone", Name: "Moss Stone", Description: "Soft green moss on a river stone", Kind: "relic", Rarity: "common", Unlock: "none"},
	{Code: "shadow_seed", Name: "Shadow Seed", Description: "Sprouts only in the dark of the moon", Kind: "seed", Rarity: "common", Unlock: "new_moon_only"},
	{Code: "silver_fern", Name: "Silver Fern", Description: "A fern that catches the rising light", Kind: "seed", Rarity: "rare", Unlock: "waxing_only"},
	{Code: "owl_feather", Name: "Owl Feather", Description: "Dropped by the garden's night watcher", Kind: "charm", Rarity: "rare", Unlock: "none"},
	{Code: "tide_shell", Name: "Tide Shell", Description: "Hums with the pull of a fading moon", Kind: "relic", Rarity: "rare", Unlock: "waning_only"},
	{Code: "moon_pearl", Name: "Moon Pearl", Description: "Glows brightest under a full moon", Kind: "relic", Rarity: "legendary", Unlock: "full_moon_only"},
	{Code: "star_lotus", Name: "Star Lotus", Description: "A lotus with petals of starlight", Kind: "seed", Rarity: "legendary", Unlock: "none"},
	{Code: "selene_tear", Name: "Selene's Tear", Description: "Said to fall once in a thousand nights", Kind: "relic", Rarity: "mythic", Unlock: "full_moon_only"},
}

// Load reads a catalog file.
func Load(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes catalog YAML and validates every entry.
func Parse(raw []byte) ([]Entry, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	seen := make(map[string]bool, len(f.Artifacts))
	for i, e := range f.Artifacts {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("artifact #%d: %w", i+1, err)
		}
		if seen[e.Code] {
			return nil, fmt.Errorf("artifact #%d: duplicate code %q", i+1, e.Code)
		}
		seen[e.Code] = true
	}
	return f.Artifacts, nil
}

// Lookup finds a built-in entry by code.
// Returns nil if not found.
func Lookup(code string) *Entry {
	for i := range Builtin {
		if Builtin[i].Code == code {
			return &Builtin[i]
		}
	}
	return nil
}

func (e Entry) validate() error {
	if e.Code == "" || e.Name == "" {
		return fmt.Errorf("code and name are required")
	}
	if _, err := domain.ParseRarity(e.Rarity); err != nil {
		return err
	}
	switch domain.UnlockCondition(e.Unlock) {
	case "", domain.UnlockNone, domain.UnlockFullMoon, domain.UnlockWaxing, domain.UnlockNewMoon, domain.UnlockWaning:
		return nil
	}
	return fmt.Errorf("unknown unlock condition %q", e.Unlock)
}

// Definitions converts entries to domain definitions with fresh ids.
// CreatedAt steps one second per entry so stored order follows file order.
func Definitions(entries []Entry, now time.Time) []domain.ArtifactDefinition {
	defs := make([]domain.ArtifactDefinition, len(entries))
	for i, e := range entries {
		unlock := domain.UnlockCondition(e.Unlock)
		if unlock == "" {
			unlock = domain.UnlockNone
		}
		defs[i] = domain.ArtifactDefinition{
			ID:              uuid.NewString(),
			Code:            e.Code,
			Name:            e.Name,
			Description:     e.Description,
			Kind:            e.Kind,
			Rarity:          domain.Rarity(e.Rarity),
			UnlockCondition: unlock,
			CreatedAt:       now.Add(time.Duration(i) * time.Second),
		}
	}
	return defs
}
