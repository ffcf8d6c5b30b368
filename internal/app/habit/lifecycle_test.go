package habit_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNew_Defaults(t *testing.T) {
	h := newHabit(t, habit.CreateParams{Name: "  Read  "})
	if h.Name != "Read" {
		t.Errorf("name = %q, want trimmed", h.Name)
	}
	if !h.Active {
		t.Error("new habit should be active")
	}
	if h.FrequencyKind() != domain.FreqDaily || h.FrequencyValue() != 1 {
		t.Errorf("frequency = %s/%d, want daily/1", h.FrequencyKind(), h.FrequencyValue())
	}
	if h.Plant.ID == "" || h.Plant.HabitID != h.ID || h.Plant.Species != domain.DefaultSpecies {
		t.Errorf("plant = %+v", h.Plant)
	}
	if h.Plant.GlowLevel != 1 || h.Plant.StageName != "seedling" {
		t.Errorf("plant glow=%d stage=%s", h.Plant.GlowLevel, h.Plant.StageName)
	}
}

func TestNew_FrequencyNormalization(t *testing.T) {
	tests := []struct {
		kind      domain.FrequencyKind
		value     *int
		wantValue int
		wantDays  int
	}{
		{domain.FreqDaily, intPtr(9), 1, 1},
		{domain.FreqWeekly, intPtr(3), 1, 7},
		{domain.FreqCustomDays, nil, 1, 1},
		{domain.FreqCustomDays, intPtr(3), 3, 3},
		{domain.FreqCustomWeeks, intPtr(2), 2, 14},
	}
	for _, tt := range tests {
		h := newHabit(t, habit.CreateParams{FrequencyKind: tt.kind, FrequencyValue: tt.value})
		if h.FrequencyValue() != tt.wantValue || h.RequiredIntervalDays() != tt.wantDays {
			t.Errorf("%s: value=%d days=%d, want %d %d", tt.kind, h.FrequencyValue(), h.RequiredIntervalDays(), tt.wantValue, tt.wantDays)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		p    habit.CreateParams
		want error
	}{
		{"blank name", habit.CreateParams{Name: "   "}, domain.ErrInvalidHabit},
		{"long name", habit.CreateParams{Name: strings.Repeat("x", 101)}, domain.ErrInvalidHabit},
		{"long description", habit.CreateParams{Name: "a", Description: strings.Repeat("x", 513)}, domain.ErrInvalidHabit},
		{"cooldown too long", habit.CreateParams{Name: "a", CooldownHours: 73}, domain.ErrInvalidHabit},
		{"negative cooldown", habit.CreateParams{Name: "a", CooldownHours: -1}, domain.ErrInvalidHabit},
		{"negative initial days", habit.CreateParams{Name: "a", InitialDays: -1}, domain.ErrInvalidHabit},
		{"too many initial days", habit.CreateParams{Name: "a", InitialDays: 3651}, domain.ErrInvalidHabit},
		{"zero custom value", habit.CreateParams{Name: "a", FrequencyKind: domain.FreqCustomDays, FrequencyValue: intPtr(0)}, domain.ErrInvalidHabit},
		{"huge custom value", habit.CreateParams{Name: "a", FrequencyKind: domain.FreqCustomWeeks, FrequencyValue: intPtr(366)}, domain.ErrInvalidHabit},
		{"unknown kind", habit.CreateParams{Name: "a", FrequencyKind: "monthly"}, domain.ErrInvalidFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := habit.New("u1", tt.p, nil, day0)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApply(t *testing.T) {
	h := newHabit(t, habit.CreateParams{FrequencyKind: domain.FreqCustomDays, FrequencyValue: intPtr(4)})
	name := "Stretch"
	off := false

	got, err := habit.Apply(h, habit.UpdateParams{Name: &name, Active: &off, CooldownHours: intPtr(6)}, day0)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got.Name != "Stretch" || got.Active || got.CooldownHours != 6 {
		t.Errorf("habit = %+v", got)
	}
	if got.FrequencyValue() != 4 {
		t.Errorf("frequency changed without being asked: %d", got.FrequencyValue())
	}
	if got.ID != h.ID || got.InitialProgressDays != h.InitialProgressDays {
		t.Error("identity fields changed")
	}
}

func TestApply_FrequencyValueOnly(t *testing.T) {
	h := newHabit(t, habit.CreateParams{FrequencyKind: domain.FreqCustomWeeks, FrequencyValue: intPtr(2)})
	got, err := habit.Apply(h, habit.UpdateParams{FrequencyValue: intPtr(3)}, day0)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got.FrequencyKind() != domain.FreqCustomWeeks || got.RequiredIntervalDays() != 21 {
		t.Errorf("frequency = %s/%d", got.FrequencyKind(), got.RequiredIntervalDays())
	}
}

func TestApply_WeeklyKeepsExplicitValue(t *testing.T) {
	h := newHabit(t, habit.CreateParams{})
	weekly := domain.FreqWeekly

	got, err := habit.Apply(h, habit.UpdateParams{FrequencyKind: &weekly, FrequencyValue: intPtr(2)}, day0)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got.FrequencyKind() != domain.FreqWeekly || got.FrequencyValue() != 2 || got.RequiredIntervalDays() != 14 {
		t.Errorf("frequency = %s/%d days=%d, want weekly/2 days=14", got.FrequencyKind(), got.FrequencyValue(), got.RequiredIntervalDays())
	}

	// A later unrelated update keeps the stored weeks.
	name := "Long run"
	again, err := habit.Apply(got, habit.UpdateParams{Name: &name}, day0)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if again.RequiredIntervalDays() != 14 {
		t.Errorf("interval = %d after rename, want 14", again.RequiredIntervalDays())
	}

	// Switching to weekly without a value starts at one week.
	fresh, err := habit.Apply(h, habit.UpdateParams{FrequencyKind: &weekly}, day0)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if fresh.RequiredIntervalDays() != 7 {
		t.Errorf("interval = %d, want 7", fresh.RequiredIntervalDays())
	}

	if _, err := habit.Apply(h, habit.UpdateParams{FrequencyKind: &weekly, FrequencyValue: intPtr(0)}, day0); !errors.Is(err, domain.ErrInvalidHabit) {
		t.Errorf("err = %v, want ErrInvalidHabit", err)
	}
}

func TestApply_InvalidLeavesHabit(t *testing.T) {
	h := newHabit(t, habit.CreateParams{})
	if _, err := habit.Apply(h, habit.UpdateParams{CooldownHours: intPtr(100)}, day0); !errors.Is(err, domain.ErrInvalidHabit) {
		t.Errorf("err = %v, want ErrInvalidHabit", err)
	}
}
