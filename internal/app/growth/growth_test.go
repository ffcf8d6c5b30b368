package growth

import (
	"errors"
	"testing"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

func TestStageFor_DefaultThresholds(t *testing.T) {
	m := MustMapper(DefaultStages())
	tests := []struct {
		progress int
		ordinal  int
		name     string
	}{
		{-3, 0, "seedling"},
		{0, 0, "seedling"},
		{3, 0, "seedling"},
		{4, 1, "young"},
		{7, 1, "young"},
		{8, 2, "flourishing"},
		{15, 3, "blooming"},
		{21, 3, "blooming"},
		{22, 4, "radiant"},
		{1000, 4, "radiant"},
	}
	for _, tt := range tests {
		ord, name := m.StageFor(tt.progress)
		if ord != tt.ordinal || name != tt.name {
			t.Errorf("StageFor(%d) = (%d, %s), want (%d, %s)", tt.progress, ord, name, tt.ordinal, tt.name)
		}
	}
}

func TestStageFor_Monotonic(t *testing.T) {
	m := MustMapper(DefaultStages())
	prev := -1
	for p := 0; p <= 100; p++ {
		ord, _ := m.StageFor(p)
		if ord < prev {
			t.Fatalf("stage decreased at progress %d: %d < %d", p, ord, prev)
		}
		prev = ord
	}
}

func TestNewMapper_Validation(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
	}{
		{"empty", nil},
		{"first not zero", []Stage{{"a", 1}, {"b", 2}}},
		{"not increasing", []Stage{{"a", 0}, {"b", 5}, {"c", 5}}},
		{"decreasing", []Stage{{"a", 0}, {"b", 5}, {"c", 3}}},
		{"unnamed", []Stage{{"a", 0}, {"", 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapper(tt.stages)
			if !errors.Is(err, domain.ErrInvalidStages) {
				t.Errorf("err = %v, want ErrInvalidStages", err)
			}
		})
	}
}

func TestMapper_StagesIsCopy(t *testing.T) {
	m := MustMapper(DefaultStages())
	s := m.Stages()
	s[0].Name = "mutated"
	if _, name := m.StageFor(0); name != "seedling" {
		t.Errorf("mapper changed through Stages(): %s", name)
	}
}
