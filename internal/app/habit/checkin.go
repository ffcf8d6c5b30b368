// Package habit implements the check-in state machine that advances,
// resets or wilts a habit's streak, grows its plant and pays the reward.
//
// The state is never stored as an enum: it is derived on every check-in
// by comparing today's local date with the last accepted check-in.
package habit

import (
	"fmt"
	"time"

	"github.com/moonlit-garden/moonlit/internal/app/growth"
	"github.com/moonlit-garden/moonlit/internal/app/moonlight"
	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Config tunes rewards and cleansing.
type Config struct {
	BaseReward         int64 `toml:"base_reward"`
	StreakBonusDivisor int   `toml:"streak_bonus_divisor"`
	StreakBonusCap     int64 `toml:"streak_bonus_cap"`
	CleanseCost        int64 `toml:"cleanse_cost"`
}

// DefaultConfig returns the stock economy.
func DefaultConfig() Config {
	return Config{
		BaseReward:         5,
		StreakBonusDivisor: 3,
		StreakBonusCap:     20,
		CleanseCost:        25,
	}
}

// Transition names what a successful check-in did to the streak.
type Transition string

const (
	TransitionFirst     Transition = "first"     // first check-in ever
	TransitionContinued Transition = "continued" // on schedule, streak +1
	TransitionMissed    Transition = "missed"    // window missed, streak reset
)

// Input is everything a check-in needs besides the habit and ledger.
type Input struct {
	Now            time.Time
	Today          domain.LocalDate // local date of Now in the user's timezone
	Moon           domain.MoonPhaseInfo
	ForceCleansing bool
}

// Result is the outcome of an accepted check-in.
type Result struct {
	Habit       domain.Habit         `json:"habit"`
	Transition  Transition           `json:"transition"`
	Reward      int64                `json:"gained_moonlight"`
	Cleansed    bool                 `json:"cleansed"`
	CleanseCost int64                `json:"cleanse_cost"`
	Moon        domain.MoonPhaseInfo `json:"moon"`
	Balance     int64                `json:"total_moonlight"`
}

// Engine applies check-ins. Stateless apart from its tuning; safe for
// concurrent use on different habits.
type Engine struct {
	cfg    Config
	stages *growth.Mapper
}

// NewEngine creates a check-in engine.
func NewEngine(cfg Config, stages *growth.Mapper) *Engine {
	if cfg.StreakBonusDivisor <= 0 {
		cfg.StreakBonusDivisor = 1
	}
	return &Engine{cfg: cfg, stages: stages}
}

// Config returns the engine tuning.
func (e *Engine) Config() Config { return e.cfg }

// CheckIn runs one check-in against a copy of h. On error nothing is
// changed: h is untouched and ledger holds no new entries.
//
// When in.ForceCleansing is set and the habit is wilted, the cleanse cost
// is charged and the wilted flag cleared before the streak is evaluated,
// so a missed window on the same call resets the streak without wilting.
func (e *Engine) CheckIn(h domain.Habit, ledger *moonlight.Ledger, in Input) (Result, error) {
	transition, streak, err := e.evaluate(&h, in)
	if err != nil {
		return Result{}, err
	}

	var cleansed bool
	var cost int64
	if in.ForceCleansing && h.Wilted {
		if err := ledger.Spend(e.cfg.CleanseCost, domain.ReasonCleanse); err != nil {
			return Result{}, fmt.Errorf("cleanse habit %s: %w", h.ID, err)
		}
		h.Wilted = false
		cleansed = true
		cost = e.cfg.CleanseCost
	}

	h.CurrentStreak = streak
	if transition == TransitionMissed && !cleansed {
		h.Wilted = true
		h.LastWiltedAt = in.Now
	}
	if h.CurrentStreak > h.BestStreak {
		h.BestStreak = h.CurrentStreak
	}
	today := in.Today
	h.LastCheckinDate = &today
	h.LastCheckinAt = in.Now
	h.UpdatedAt = in.Now

	EnsurePlant(&h, e.stages, in.Now)
	e.grow(&h, in.Now)

	reward := e.Reward(h.CurrentStreak, h.Wilted, in.Moon.EnergyMultiplier)
	if err := ledger.Earn(reward, domain.ReasonCheckin); err != nil {
		return Result{}, fmt.Errorf("credit reward: %w", err)
	}

	return Result{
		Habit:       h,
		Transition:  transition,
		Reward:      reward,
		Cleansed:    cleansed,
		CleanseCost: cost,
		Moon:        in.Moon,
		Balance:     ledger.Balance(),
	}, nil
}

// evaluate decides the transition without mutating h.
func (e *Engine) evaluate(h *domain.Habit, in Input) (Transition, int, error) {
	if !h.Active {
		return "", 0, fmt.Errorf("habit %s: %w", h.ID, domain.ErrHabitInactive)
	}
	last := h.LastCheckinDate
	if last != nil && last.Equal(in.Today) {
		return "", 0, fmt.Errorf("habit %s on %s: %w", h.ID, in.Today, domain.ErrAlreadyCompletedToday)
	}
	if h.CooldownHours > 0 && !h.LastCheckinAt.IsZero() {
		cooldown := time.Duration(h.CooldownHours) * time.Hour
		if elapsed := in.Now.Sub(h.LastCheckinAt); elapsed < cooldown {
			return "", 0, fmt.Errorf("habit %s: %w (%s left)", h.ID, domain.ErrOnCooldown, (cooldown - elapsed).Round(time.Minute))
		}
	}
	if last == nil {
		return TransitionFirst, h.InitialProgressDays + 1, nil
	}

	elapsed := in.Today.DaysSince(*last)
	required := h.RequiredIntervalDays()
	switch {
	case elapsed < required:
		return "", 0, fmt.Errorf("habit %s: %w (%d of %d days)", h.ID, domain.ErrTooEarly, elapsed, required)
	case elapsed == required:
		return TransitionContinued, h.CurrentStreak + 1, nil
	default:
		return TransitionMissed, 1, nil
	}
}

// grow recomputes the plant from the habit's streak.
func (e *Engine) grow(h *domain.Habit, now time.Time) {
	p := &h.Plant
	p.GrowthStage, p.StageName = e.stages.StageFor(h.CurrentStreak)
	p.Wilted = h.Wilted
	p.GlowLevel = domain.GlowForStreak(h.CurrentStreak)
	p.GrowthPoints++
	p.LastEvolvedAt = now
}

// Reward returns floor((base + bonus) × multiplier) where
// bonus = min(cap, streak / divisor), halved while wilted.
func (e *Engine) Reward(streak int, wilted bool, multiplier float64) int64 {
	bonus := min(e.cfg.StreakBonusCap, int64(streak/e.cfg.StreakBonusDivisor))
	if wilted {
		bonus /= 2
	}
	return moonlight.Scale(e.cfg.BaseReward+bonus, multiplier)
}
