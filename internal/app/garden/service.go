// Package garden is the application service around the progression core.
// Each operation loads state in one storage transaction, runs the engine
// on it and commits the result, serialized per user so two requests for
// the same user never interleave.
package garden

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/moonlit-garden/moonlit/internal/app/artifact"
	"github.com/moonlit-garden/moonlit/internal/app/growth"
	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/app/lunar"
	"github.com/moonlit-garden/moonlit/internal/app/moonlight"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/metrics"
)

// DefaultHistoryLimit caps History when the caller passes no limit.
const DefaultHistoryLimit = 50

// Options wires the service. Zero fields get defaults.
type Options struct {
	Moon       *lunar.Calculator
	Stages     *growth.Mapper
	Checkins   *habit.Engine
	Discovery  *artifact.Engine
	Clock      domain.Clock
	DailyBonus int64
	Logger     *log.Logger
}

// Service runs garden operations against a store.
type Service struct {
	store      domain.GardenStore
	moon       *lunar.Calculator
	stages     *growth.Mapper
	checkins   *habit.Engine
	discovery  *artifact.Engine
	clock      domain.Clock
	dailyBonus int64
	log        *log.Logger
	locks      *keyedMutex
}

// NewService creates a garden service.
func NewService(store domain.GardenStore, opts Options) *Service {
	if opts.Moon == nil {
		opts.Moon = lunar.NewCalculator(lunar.DefaultConfig(), nil)
	}
	if opts.Stages == nil {
		opts.Stages = growth.MustMapper(growth.DefaultStages())
	}
	if opts.Checkins == nil {
		opts.Checkins = habit.NewEngine(habit.DefaultConfig(), opts.Stages)
	}
	if opts.Discovery == nil {
		opts.Discovery = artifact.NewEngine(artifact.DefaultConfig(), nil)
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}
	if opts.DailyBonus <= 0 {
		opts.DailyBonus = moonlight.DefaultDailyBonus
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Service{
		store:      store,
		moon:       opts.Moon,
		stages:     opts.Stages,
		checkins:   opts.Checkins,
		discovery:  opts.Discovery,
		clock:      opts.Clock,
		dailyBonus: opts.DailyBonus,
		log:        opts.Logger,
		locks:      newKeyedMutex(),
	}
}

// Moon returns the service's phase calculator.
func (s *Service) Moon() *lunar.Calculator { return s.moon }

// ─── Units of work ──────────────────────────────────────────────────────────

// update serializes on the user and runs fn in a write transaction.
func (s *Service) update(ctx context.Context, userID string, fn func(domain.GardenTx) error) error {
	if userID == "" {
		return domain.ErrInvalidUser
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.store.Update(ctx, fn)
}

// user loads userID, provisioning it with the default timezone on first
// access.
func (s *Service) user(ctx context.Context, tx domain.GardenTx, userID string, now time.Time) (domain.User, error) {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if u != nil {
		return *u, nil
	}
	created := domain.User{ID: userID, Timezone: s.moon.Config().DefaultTimezone, CreatedAt: now}
	if err := tx.UpsertUser(ctx, created); err != nil {
		return domain.User{}, err
	}
	s.log.Info("user provisioned", "user", userID, "tz", created.Timezone)
	return created, nil
}

// account loads the user's account, or a fresh empty one.
func account(ctx context.Context, tx domain.GardenTx, userID string, now time.Time) (domain.MoonlightAccount, error) {
	acc, err := tx.GetAccount(ctx, userID)
	if err != nil {
		return domain.MoonlightAccount{}, err
	}
	if acc == nil {
		return domain.MoonlightAccount{UserID: userID, UpdatedAt: now}, nil
	}
	return *acc, nil
}

// saveLedger persists the account and its new journal entries.
func saveLedger(ctx context.Context, tx domain.GardenTx, l *moonlight.Ledger) error {
	if err := tx.SaveAccount(ctx, l.Account()); err != nil {
		return err
	}
	if entries := l.Entries(); len(entries) > 0 {
		return tx.AppendLedger(ctx, entries)
	}
	return nil
}

// ownedHabit loads a habit and checks it belongs to userID.
func ownedHabit(ctx context.Context, tx domain.GardenTx, userID, habitID string) (*domain.Habit, error) {
	h, err := tx.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("habit %s: %w", habitID, domain.ErrHabitNotFound)
	}
	if h.UserID != userID {
		return nil, fmt.Errorf("habit %s: %w", habitID, domain.ErrNotOwnedByUser)
	}
	return h, nil
}

// observeLedger feeds journal entries into the moonlight counters.
func observeLedger(entries []domain.LedgerEntry) {
	for _, e := range entries {
		switch {
		case e.Amount > 0:
			metrics.MoonlightEarned.WithLabelValues(e.Reason).Add(float64(e.Amount))
		case e.Amount < 0:
			metrics.MoonlightSpent.WithLabelValues(e.Reason).Add(float64(-e.Amount))
		}
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

// EnsureUser provisions or updates a user. Empty username or tz leave the
// stored value alone.
func (s *Service) EnsureUser(ctx context.Context, userID, username, tz string) (domain.User, error) {
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return domain.User{}, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
		}
	}
	var out domain.User
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		u, err := s.user(ctx, tx, userID, s.clock.Now())
		if err != nil {
			return err
		}
		if username == "" && (tz == "" || tz == u.Timezone) {
			out = u
			return nil
		}
		if username != "" {
			u.Username = username
		}
		if tz != "" {
			u.Timezone = tz
		}
		out = u
		return tx.UpsertUser(ctx, u)
	})
	return out, err
}

// ─── Moon ───────────────────────────────────────────────────────────────────

// MoonToday returns today's phase in the user's timezone. Unknown users
// get the default timezone; nothing is provisioned.
func (s *Service) MoonToday(ctx context.Context, userID string) (domain.MoonPhaseInfo, error) {
	tz := ""
	if userID != "" {
		err := s.store.View(ctx, func(tx domain.GardenTx) error {
			u, err := tx.GetUser(ctx, userID)
			if u != nil {
				tz = u.Timezone
			}
			return err
		})
		if err != nil {
			return domain.MoonPhaseInfo{}, err
		}
	}
	return s.moon.ForInstant(ctx, s.clock.Now(), tz), nil
}

// MoonIn returns today's phase in an explicit timezone.
func (s *Service) MoonIn(ctx context.Context, tz string) (domain.MoonPhaseInfo, error) {
	if _, err := time.LoadLocation(tz); err != nil {
		return domain.MoonPhaseInfo{}, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, tz)
	}
	return s.moon.ForInstant(ctx, s.clock.Now(), tz), nil
}

// ─── Habits ─────────────────────────────────────────────────────────────────

// CreateHabit validates params and stores a habit with its plant.
func (s *Service) CreateHabit(ctx context.Context, userID string, p habit.CreateParams) (domain.Habit, error) {
	var out domain.Habit
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		if _, err := s.user(ctx, tx, userID, now); err != nil {
			return err
		}
		h, err := habit.New(userID, p, s.stages, now)
		if err != nil {
			return err
		}
		if err := tx.InsertHabit(ctx, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err == nil {
		s.log.Info("habit created", "user", userID, "habit", out.ID, "frequency", out.FrequencyKind())
	}
	return out, err
}

// UpdateHabit applies a partial update to an owned habit.
func (s *Service) UpdateHabit(ctx context.Context, userID, habitID string, p habit.UpdateParams) (domain.Habit, error) {
	var out domain.Habit
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		h, err := ownedHabit(ctx, tx, userID, habitID)
		if err != nil {
			return err
		}
		updated, err := habit.Apply(*h, p, s.clock.Now())
		if err != nil {
			return err
		}
		if err := tx.UpdateHabit(ctx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	return out, err
}

// DeleteHabit removes an owned habit and its plant.
func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		if _, err := ownedHabit(ctx, tx, userID, habitID); err != nil {
			return err
		}
		return tx.DeleteHabit(ctx, habitID)
	})
	if err == nil {
		s.log.Info("habit deleted", "user", userID, "habit", habitID)
	}
	return err
}

// GetHabit returns an owned habit.
func (s *Service) GetHabit(ctx context.Context, userID, habitID string) (domain.Habit, error) {
	var out domain.Habit
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		h, err := ownedHabit(ctx, tx, userID, habitID)
		if err != nil {
			return err
		}
		out = *h
		return nil
	})
	return out, err
}

// ListHabits returns the user's habits, oldest first.
func (s *Service) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	var out []domain.Habit
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		var err error
		out, err = tx.ListHabits(ctx, userID)
		return err
	})
	return out, err
}

// CheckIn records a check-in on an owned habit. With forceCleansing a
// wilted plant is cleansed first, paid from the user's moonlight.
func (s *Service) CheckIn(ctx context.Context, userID, habitID string, forceCleansing bool) (habit.Result, error) {
	var res habit.Result
	var entries []domain.LedgerEntry
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		u, err := s.user(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		h, err := ownedHabit(ctx, tx, userID, habitID)
		if err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		ledger := moonlight.Open(acc, now)
		res, err = s.checkins.CheckIn(*h, ledger, habit.Input{
			Now:            now,
			Today:          s.moon.LocalDate(now, u.Timezone),
			Moon:           s.moon.ForInstant(ctx, now, u.Timezone),
			ForceCleansing: forceCleansing,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateHabit(ctx, res.Habit); err != nil {
			return err
		}
		entries = ledger.Entries()
		return saveLedger(ctx, tx, ledger)
	})
	if err != nil {
		metrics.CheckIns.WithLabelValues(string(domain.ErrorCode(err))).Inc()
		s.log.Debug("check-in rejected", "user", userID, "habit", habitID, "err", err)
		return habit.Result{}, err
	}

	metrics.CheckIns.WithLabelValues(string(res.Transition)).Inc()
	if res.Cleansed {
		metrics.Cleanses.Inc()
	}
	observeLedger(entries)
	s.log.Info("check-in accepted",
		"user", userID, "habit", habitID, "transition", res.Transition,
		"streak", res.Habit.CurrentStreak, "reward", res.Reward, "phase", res.Moon.Phase)
	return res, nil
}

// ─── Moonlight ──────────────────────────────────────────────────────────────

// Balance returns the user's account; unknown users have an empty one.
func (s *Service) Balance(ctx context.Context, userID string) (domain.MoonlightAccount, error) {
	var out domain.MoonlightAccount
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		var err error
		out, err = account(ctx, tx, userID, s.clock.Now())
		return err
	})
	return out, err
}

// Spend debits moonlight for an arbitrary reason.
func (s *Service) Spend(ctx context.Context, userID string, amount int64, reason string) (domain.MoonlightAccount, error) {
	if reason == "" {
		reason = domain.ReasonManual
	}
	var out domain.MoonlightAccount
	var entries []domain.LedgerEntry
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		if _, err := s.user(ctx, tx, userID, now); err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		ledger := moonlight.Open(acc, now)
		if err := ledger.Spend(amount, reason); err != nil {
			return err
		}
		out = ledger.Account()
		entries = ledger.Entries()
		return saveLedger(ctx, tx, ledger)
	})
	if err == nil {
		observeLedger(entries)
	}
	return out, err
}

// Adjust applies an operator-driven delta. A debit past the balance
// clamps it at zero. Returns the account and the delta actually applied.
func (s *Service) Adjust(ctx context.Context, userID string, delta int64, reason string) (domain.MoonlightAccount, int64, error) {
	if reason == "" {
		reason = domain.ReasonManual
	}
	var out domain.MoonlightAccount
	var applied int64
	var entries []domain.LedgerEntry
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		if _, err := s.user(ctx, tx, userID, now); err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		ledger := moonlight.Open(acc, now)
		applied = ledger.Adjust(delta, reason)
		out = ledger.Account()
		entries = ledger.Entries()
		return saveLedger(ctx, tx, ledger)
	})
	if err != nil {
		return domain.MoonlightAccount{}, 0, err
	}
	observeLedger(entries)
	s.log.Info("moonlight adjusted", "user", userID, "delta", applied, "reason", reason)
	return out, applied, nil
}

// BonusResult is a daily bonus claim with the moon it was claimed under.
type BonusResult struct {
	moonlight.DailyBonus
	Moon domain.MoonPhaseInfo `json:"moon"`
}

// ClaimDailyBonus credits today's bonus once per local date.
func (s *Service) ClaimDailyBonus(ctx context.Context, userID string) (BonusResult, error) {
	var out BonusResult
	var entries []domain.LedgerEntry
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		u, err := s.user(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		moon := s.moon.ForInstant(ctx, now, u.Timezone)
		ledger := moonlight.Open(acc, now)
		out = BonusResult{
			DailyBonus: ledger.ClaimDailyBonus(moon.LocalDate, s.dailyBonus, moon.EnergyMultiplier),
			Moon:       moon,
		}
		if !out.Applied {
			return nil
		}
		entries = ledger.Entries()
		return saveLedger(ctx, tx, ledger)
	})
	if err != nil {
		return BonusResult{}, err
	}
	metrics.DailyBonusClaims.WithLabelValues(strconv.FormatBool(out.Applied)).Inc()
	observeLedger(entries)
	return out, nil
}

// History returns the newest journal entries first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var out []domain.LedgerEntry
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		var err error
		out, err = tx.LedgerEntries(ctx, userID, limit)
		return err
	})
	return out, err
}

// ─── Garden ─────────────────────────────────────────────────────────────────

// PlantView pairs a plant with the habit it grows from.
type PlantView struct {
	domain.Plant
	HabitName     string `json:"habit_name"`
	HabitActive   bool   `json:"habit_is_active"`
	CurrentStreak int    `json:"current_streak"`
}

// State is the garden overview.
type State struct {
	Plants       []PlantView          `json:"plants"`
	ActiveHabits int                  `json:"active_habits"`
	Moon         domain.MoonPhaseInfo `json:"moon"`
	Balance      int64                `json:"moonlight"`
}

// GardenState returns the user's plants, moon and balance. Habits missing
// a plant get one.
func (s *Service) GardenState(ctx context.Context, userID string) (State, error) {
	var out State
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		u, err := s.user(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		habits, err := tx.ListHabits(ctx, userID)
		if err != nil {
			return err
		}
		out.Plants = make([]PlantView, 0, len(habits))
		for _, h := range habits {
			if h.Plant.ID == "" {
				habit.EnsurePlant(&h, s.stages, now)
				if err := tx.UpdateHabit(ctx, h); err != nil {
					return err
				}
			}
			out.Plants = append(out.Plants, PlantView{
				Plant:         h.Plant,
				HabitName:     h.Name,
				HabitActive:   h.Active,
				CurrentStreak: h.CurrentStreak,
			})
		}
		if out.ActiveHabits, err = tx.CountActiveHabits(ctx, userID); err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		out.Balance = acc.Balance
		out.Moon = s.moon.ForInstant(ctx, now, u.Timezone)
		return nil
	})
	return out, err
}
