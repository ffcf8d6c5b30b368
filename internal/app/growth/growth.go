// Package growth maps habit progress to plant growth stages.
package growth

import (
	"fmt"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Stage is a named growth stage reached at Threshold progress.
type Stage struct {
	Name      string `toml:"name" json:"name"`
	Threshold int    `toml:"threshold" json:"threshold"`
}

// DefaultStages is seedling < young < flourishing < blooming < radiant.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "seedling", Threshold: 0},
		{Name: "young", Threshold: 4},
		{Name: "flourishing", Threshold: 8},
		{Name: "blooming", Threshold: 15},
		{Name: "radiant", Threshold: 22},
	}
}

// Mapper picks the highest stage whose threshold the progress meets.
// Monotonic: more progress never yields a lower stage.
type Mapper struct {
	stages []Stage
}

// NewMapper validates stages: non-empty, first threshold 0, thresholds
// strictly increasing, names non-empty.
func NewMapper(stages []Stage) (*Mapper, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: no stages", domain.ErrInvalidStages)
	}
	if stages[0].Threshold != 0 {
		return nil, fmt.Errorf("%w: first threshold must be 0, got %d", domain.ErrInvalidStages, stages[0].Threshold)
	}
	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: stage %d has no name", domain.ErrInvalidStages, i)
		}
		if i > 0 && s.Threshold <= stages[i-1].Threshold {
			return nil, fmt.Errorf("%w: threshold %d for %q is not above %d",
				domain.ErrInvalidStages, s.Threshold, s.Name, stages[i-1].Threshold)
		}
	}
	cp := make([]Stage, len(stages))
	copy(cp, stages)
	return &Mapper{stages: cp}, nil
}

// MustMapper is NewMapper for known-good stage lists.
func MustMapper(stages []Stage) *Mapper {
	m, err := NewMapper(stages)
	if err != nil {
		panic(err)
	}
	return m
}

// StageFor returns the ordinal and name of the stage for progress.
// Negative progress is treated as 0.
func (m *Mapper) StageFor(progress int) (int, string) {
	idx := 0
	for i, s := range m.stages {
		if progress >= s.Threshold {
			idx = i
		} else {
			break
		}
	}
	return idx, m.stages[idx].Name
}

// Stages returns a copy of the configured stages.
func (m *Mapper) Stages() []Stage {
	cp := make([]Stage, len(m.stages))
	copy(cp, m.stages)
	return cp
}
