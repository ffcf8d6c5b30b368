// Package domain holds the garden types and errors shared by every layer.
//
// A Habit is the thing a user commits to; its Plant is how the garden shows it.
// Both are plain values: the engines mutate copies, storage persists them.
package domain

import (
	"fmt"
	"time"
)

// ─── Frequency ──────────────────────────────────────────────────────────────

// FrequencyKind is the persisted label of a Frequency.
type FrequencyKind string

const (
	FreqDaily       FrequencyKind = "daily"
	FreqWeekly      FrequencyKind = "weekly"
	FreqCustomDays  FrequencyKind = "custom_days"
	FreqCustomWeeks FrequencyKind = "custom_weeks"
)

// Frequency says how often a habit must be checked in.
// Implemented by Daily, Weekly, CustomDays and CustomWeeks.
type Frequency interface {
	Kind() FrequencyKind
	// Value is the interval count stored next to the kind.
	Value() int
	// RequiredIntervalDays is the exact number of calendar days between
	// two on-schedule check-ins. Always >= 1.
	RequiredIntervalDays() int
}

// Daily requires a check-in every calendar day.
type Daily struct{}

func (Daily) Kind() FrequencyKind       { return FreqDaily }
func (Daily) Value() int                { return 1 }
func (Daily) RequiredIntervalDays() int { return 1 }

// Weekly requires a check-in every N weeks (N is normally 1).
type Weekly struct{ Weeks int }

func (w Weekly) Kind() FrequencyKind       { return FreqWeekly }
func (w Weekly) Value() int                { return atLeastOne(w.Weeks) }
func (w Weekly) RequiredIntervalDays() int { return 7 * atLeastOne(w.Weeks) }

// CustomDays requires a check-in every N days.
type CustomDays struct{ Days int }

func (c CustomDays) Kind() FrequencyKind       { return FreqCustomDays }
func (c CustomDays) Value() int                { return atLeastOne(c.Days) }
func (c CustomDays) RequiredIntervalDays() int { return atLeastOne(c.Days) }

// CustomWeeks requires a check-in every N weeks.
type CustomWeeks struct{ Weeks int }

func (c CustomWeeks) Kind() FrequencyKind       { return FreqCustomWeeks }
func (c CustomWeeks) Value() int                { return atLeastOne(c.Weeks) }
func (c CustomWeeks) RequiredIntervalDays() int { return 7 * atLeastOne(c.Weeks) }

// MakeFrequency rebuilds a Frequency from its stored kind and value.
// Values below 1 are raised to 1.
func MakeFrequency(kind FrequencyKind, value int) (Frequency, error) {
	switch kind {
	case FreqDaily, "":
		return Daily{}, nil
	case FreqWeekly:
		return Weekly{Weeks: atLeastOne(value)}, nil
	case FreqCustomDays:
		return CustomDays{Days: atLeastOne(value)}, nil
	case FreqCustomWeeks:
		return CustomWeeks{Weeks: atLeastOne(value)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidFrequency, kind)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ─── Habit & Plant ──────────────────────────────────────────────────────────

// Habit is a user's recurring commitment.
type Habit struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"is_active"`

	// InitialProgressDays credits a streak the user had before joining.
	InitialProgressDays int       `json:"initial_progress_days"`
	Frequency           Frequency `json:"-"`

	CurrentStreak   int        `json:"current_streak"`
	BestStreak      int        `json:"best_streak"`
	LastCheckinDate *LocalDate `json:"last_checkin_date,omitempty"`
	LastCheckinAt   time.Time  `json:"last_checkin_at,omitempty"`
	CooldownHours   int        `json:"cooldown_hours"`

	Wilted       bool      `json:"is_wilted"`
	LastWiltedAt time.Time `json:"last_wilted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Plant Plant `json:"plant"`
}

// FrequencyKind returns the stored kind, defaulting to daily.
func (h *Habit) FrequencyKind() FrequencyKind {
	if h.Frequency == nil {
		return FreqDaily
	}
	return h.Frequency.Kind()
}

// FrequencyValue returns the stored interval count, defaulting to 1.
func (h *Habit) FrequencyValue() int {
	if h.Frequency == nil {
		return 1
	}
	return h.Frequency.Value()
}

// RequiredIntervalDays delegates to the frequency; daily when unset.
func (h *Habit) RequiredIntervalDays() int {
	if h.Frequency == nil {
		return 1
	}
	return h.Frequency.RequiredIntervalDays()
}

// Plant is the garden's picture of a habit. Owned 1:1 by its Habit.
type Plant struct {
	ID      string `json:"id"`
	HabitID string `json:"habit_id"`
	Species string `json:"species"`

	// GrowthStage is derived from the habit streak; never set it directly.
	GrowthStage int    `json:"growth_stage"`
	StageName   string `json:"stage_name"`
	GlowLevel   int    `json:"glow_level"`
	// GrowthPoints counts accepted check-ins over the plant's life.
	GrowthPoints  int       `json:"growth_points"`
	Wilted        bool      `json:"is_wilted"`
	LastEvolvedAt time.Time `json:"last_evolved_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultSpecies is planted for every new habit.
const DefaultSpecies = "lotus"

// MaxGlowLevel caps Plant.GlowLevel.
const MaxGlowLevel = 5

// GlowForStreak returns min(5, streak/5 + 1), and 1 for an empty streak.
func GlowForStreak(streak int) int {
	if streak <= 0 {
		return 1
	}
	return min(MaxGlowLevel, streak/5+1)
}

// User is the owner of habits, an account and artifacts.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}
