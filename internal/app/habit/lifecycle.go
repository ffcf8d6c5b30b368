package habit

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/moonlit-garden/moonlit/internal/app/growth"
	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Input limits.
const (
	MaxNameLen        = 100
	MaxDescriptionLen = 512
	MaxCooldownHours  = 72
	MaxInitialDays    = 3650
	MaxFrequencyValue = 365
)

// CreateParams describes a new habit.
type CreateParams struct {
	Name           string               `json:"name"`
	Description    string               `json:"description,omitempty"`
	CooldownHours  int                  `json:"cooldown_hours"`
	InitialDays    int                  `json:"initial_days"`
	FrequencyKind  domain.FrequencyKind `json:"frequency_type"`
	FrequencyValue *int                 `json:"frequency_value,omitempty"`
}

// UpdateParams is a partial habit update. Nil fields are left alone.
// Initial days are deliberately not updatable.
type UpdateParams struct {
	Name           *string               `json:"name,omitempty"`
	Description    *string               `json:"description,omitempty"`
	Active         *bool                 `json:"is_active,omitempty"`
	CooldownHours  *int                  `json:"cooldown_hours,omitempty"`
	FrequencyKind  *domain.FrequencyKind `json:"frequency_type,omitempty"`
	FrequencyValue *int                  `json:"frequency_value,omitempty"`
}

// New builds a habit and its plant. The streak starts at the initial
// days so existing progress shows in the garden right away.
func New(userID string, p CreateParams, stages *growth.Mapper, now time.Time) (domain.Habit, error) {
	name := strings.TrimSpace(p.Name)
	if err := validateName(name); err != nil {
		return domain.Habit{}, err
	}
	if err := validateDescription(p.Description); err != nil {
		return domain.Habit{}, err
	}
	if err := validateCooldown(p.CooldownHours); err != nil {
		return domain.Habit{}, err
	}
	if p.InitialDays < 0 || p.InitialDays > MaxInitialDays {
		return domain.Habit{}, fmt.Errorf("%w: initial days must be in [0, %d]", domain.ErrInvalidHabit, MaxInitialDays)
	}
	freq, err := normalizeFrequency(p.FrequencyKind, p.FrequencyValue, false)
	if err != nil {
		return domain.Habit{}, err
	}

	h := domain.Habit{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                name,
		Description:         p.Description,
		Active:              true,
		InitialProgressDays: p.InitialDays,
		Frequency:           freq,
		CurrentStreak:       p.InitialDays,
		BestStreak:          p.InitialDays,
		CooldownHours:       p.CooldownHours,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	EnsurePlant(&h, stages, now)
	return h, nil
}

// Apply returns h with the update applied.
func Apply(h domain.Habit, p UpdateParams, now time.Time) (domain.Habit, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := validateName(name); err != nil {
			return h, err
		}
		h.Name = name
	}
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return h, err
		}
		h.Description = *p.Description
	}
	if p.Active != nil {
		h.Active = *p.Active
	}
	if p.CooldownHours != nil {
		if err := validateCooldown(*p.CooldownHours); err != nil {
			return h, err
		}
		h.CooldownHours = *p.CooldownHours
	}
	if p.FrequencyKind != nil || p.FrequencyValue != nil {
		kind := h.FrequencyKind()
		if p.FrequencyKind != nil {
			kind = *p.FrequencyKind
		}
		value := p.FrequencyValue
		if value == nil && kind == h.FrequencyKind() {
			v := h.FrequencyValue()
			value = &v
		}
		freq, err := normalizeFrequency(kind, value, true)
		if err != nil {
			return h, err
		}
		h.Frequency = freq
	}
	h.UpdatedAt = now
	return h, nil
}

// EnsurePlant provisions a plant for a habit that has none, staged from
// the current streak.
func EnsurePlant(h *domain.Habit, stages *growth.Mapper, now time.Time) {
	if h.Plant.ID != "" {
		return
	}
	stage, name := stages.StageFor(h.CurrentStreak)
	h.Plant = domain.Plant{
		ID:          uuid.NewString(),
		HabitID:     h.ID,
		Species:     domain.DefaultSpecies,
		GrowthStage: stage,
		StageName:   name,
		GlowLevel:   domain.GlowForStreak(h.CurrentStreak),
		Wilted:      h.Wilted,
		CreatedAt:   now,
	}
}

// normalizeFrequency applies the stored-form rules: daily keeps a value of
// 1; custom kinds default to 1 and must lie in [1, 365]. Weekly is forced
// to 1 on create, while an update keeps an explicit value.
func normalizeFrequency(kind domain.FrequencyKind, value *int, update bool) (domain.Frequency, error) {
	switch kind {
	case "", domain.FreqDaily:
		return domain.Daily{}, nil
	case domain.FreqWeekly:
		if !update || value == nil {
			return domain.Weekly{Weeks: 1}, nil
		}
	case domain.FreqCustomDays, domain.FreqCustomWeeks:
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, kind)
	}
	v := 1
	if value != nil {
		v = *value
	}
	if v < 1 || v > MaxFrequencyValue {
		return nil, fmt.Errorf("%w: frequency value must be in [1, %d]", domain.ErrInvalidHabit, MaxFrequencyValue)
	}
	return domain.MakeFrequency(kind, v)
}

func validateName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
		return fmt.Errorf("%w: name must be 1-%d characters", domain.ErrInvalidHabit, MaxNameLen)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d characters", domain.ErrInvalidHabit, MaxDescriptionLen)
	}
	return nil
}

func validateCooldown(hours int) error {
	if hours < 0 || hours > MaxCooldownHours {
		return fmt.Errorf("%w: cooldown must be in [0, %d] hours", domain.ErrInvalidHabit, MaxCooldownHours)
	}
	return nil
}
