// Package artifact implements moonlight-paid artifact discovery.
//
// A discovery charges a fixed cost, then draws one definition from the
// catalog, weighted by rarity and the current moon phase. Artifacts the
// user does not own yet are preferred; once everything is owned the draw
// falls back to the whole catalog and yields a duplicate.
package artifact

import (
	"fmt"
	"math/rand/v2"

	"github.com/moonlit-garden/moonlit/internal/app/moonlight"
	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Config tunes discovery.
type Config struct {
	Cost             int64                                          `toml:"cost"`
	RarityWeights    map[domain.Rarity]float64                      `toml:"rarity_weights"`
	PhaseMultipliers map[domain.MoonPhase]map[domain.Rarity]float64 `toml:"phase_multipliers"`
}

// DefaultConfig returns stock weights: full moons favor the rarest
// tiers, new moons favor common finds.
func DefaultConfig() Config {
	return Config{
		Cost: 50,
		RarityWeights: map[domain.Rarity]float64{
			domain.RarityCommon:    70,
			domain.RarityRare:      25,
			domain.RarityLegendary: 4,
			domain.RarityMythic:    1,
		},
		PhaseMultipliers: map[domain.MoonPhase]map[domain.Rarity]float64{
			domain.PhaseFull: {
				domain.RarityLegendary: 1.5,
				domain.RarityMythic:    1.5,
			},
			domain.PhaseNew: {
				domain.RarityCommon: 1.2,
			},
		},
	}
}

// Validate checks the tuning.
func (c Config) Validate() error {
	if c.Cost <= 0 {
		return fmt.Errorf("discovery cost must be positive, got %d", c.Cost)
	}
	for r, w := range c.RarityWeights {
		if r.Rank() < 0 {
			return fmt.Errorf("unknown rarity %q in weights", r)
		}
		if w < 0 {
			return fmt.Errorf("rarity %s: negative weight %v", r, w)
		}
	}
	for p, byRarity := range c.PhaseMultipliers {
		for r, m := range byRarity {
			if m < 0 {
				return fmt.Errorf("phase %s rarity %s: negative multiplier %v", p, r, m)
			}
		}
	}
	return nil
}

// Weight returns the effective draw weight of rarity during phase.
// Unknown rarities weigh 1; missing phase entries multiply by 1.
func (c Config) Weight(r domain.Rarity, phase domain.MoonPhase) float64 {
	base, ok := c.RarityWeights[r]
	if !ok {
		base = 1
	}
	mult := 1.0
	if m, ok := c.PhaseMultipliers[phase][r]; ok {
		mult = m
	}
	return base * mult
}

// Draw is the outcome of one discovery.
type Draw struct {
	Definition domain.ArtifactDefinition
	Duplicate  bool
	Cost       int64
	Phase      domain.MoonPhase
}

// Engine performs weighted draws.
type Engine struct {
	cfg Config
	rng domain.RandomSource
}

// globalRand draws from math/rand/v2's goroutine-safe top-level source.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// NewEngine creates a discovery engine. A nil rng uses math/rand/v2.
func NewEngine(cfg Config, rng domain.RandomSource) *Engine {
	if rng == nil {
		rng = globalRand{}
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Config returns the engine tuning.
func (e *Engine) Config() Config { return e.cfg }

// Discover charges the cost on ledger and draws one definition.
// catalog order is preserved and decides ties. owned holds the
// definition ids the user already has.
func (e *Engine) Discover(catalog []domain.ArtifactDefinition, owned map[string]bool, phase domain.MoonPhase, ledger *moonlight.Ledger) (Draw, error) {
	if len(catalog) == 0 {
		return Draw{}, domain.ErrEmptyCatalog
	}
	if err := ledger.Spend(e.cfg.Cost, domain.ReasonDiscovery); err != nil {
		return Draw{}, fmt.Errorf("discover: %w", err)
	}

	pool := Candidates(catalog, owned, phase)
	def := e.pick(pool, phase)
	return Draw{
		Definition: def,
		Duplicate:  owned[def.ID],
		Cost:       e.cfg.Cost,
		Phase:      phase,
	}, nil
}

// Candidates narrows catalog to what a draw may return: definitions not
// yet owned (or all of them when everything is owned) whose unlock
// condition allows phase. If the unlock filter would empty the pool, it
// is ignored.
func Candidates(catalog []domain.ArtifactDefinition, owned map[string]bool, phase domain.MoonPhase) []domain.ArtifactDefinition {
	pool := make([]domain.ArtifactDefinition, 0, len(catalog))
	for _, d := range catalog {
		if !owned[d.ID] {
			pool = append(pool, d)
		}
	}
	if len(pool) == 0 {
		pool = catalog
	}

	unlocked := make([]domain.ArtifactDefinition, 0, len(pool))
	for _, d := range pool {
		if d.UnlockCondition.Allows(phase) {
			unlocked = append(unlocked, d)
		}
	}
	if len(unlocked) == 0 {
		return pool
	}
	return unlocked
}

// pick draws r uniformly in [0, total) and returns the first candidate
// whose cumulative weight exceeds r, or the last candidate if rounding
// leaves r past the end.
func (e *Engine) pick(pool []domain.ArtifactDefinition, phase domain.MoonPhase) domain.ArtifactDefinition {
	var total float64
	for _, d := range pool {
		total += e.cfg.Weight(d.Rarity, phase)
	}
	if total <= 0 {
		// every weight zero: uniform over the pool
		i := int(e.rng.Float64() * float64(len(pool)))
		return pool[min(i, len(pool)-1)]
	}

	r := e.rng.Float64() * total
	var cum float64
	for _, d := range pool {
		cum += e.cfg.Weight(d.Rarity, phase)
		if r < cum {
			return d
		}
	}
	return pool[len(pool)-1]
}
