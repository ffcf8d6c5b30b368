package garden_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/moonlit-garden/moonlit/internal/app/artifact"
	"github.com/moonlit-garden/moonlit/internal/app/garden"
	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/app/lunar"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/catalog"
	"github.com/moonlit-garden/moonlit/internal/infra/storage"
)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

type fixture struct {
	svc   *garden.Service
	clock *testClock
	ctx   context.Context
}

// newFixture builds a service over a temp SQLite store with a flat moon
// (every multiplier 1.0) in UTC.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := lunar.DefaultConfig()
	cfg.DefaultTimezone = "UTC"
	for _, p := range domain.MoonPhases {
		cfg.Multipliers[p] = 1.0
	}
	clock := &testClock{now: time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := garden.NewService(db, garden.Options{
		Moon:      lunar.NewCalculator(cfg, nil),
		Discovery: artifact.NewEngine(artifact.DefaultConfig(), fixedRand(0)),
		Clock:     clock,
	})
	return &fixture{svc: svc, clock: clock, ctx: context.Background()}
}

func (f *fixture) habit(t *testing.T, userID string, p habit.CreateParams) domain.Habit {
	t.Helper()
	if p.Name == "" {
		p.Name = "Journal"
	}
	h, err := f.svc.CreateHabit(f.ctx, userID, p)
	if err != nil {
		t.Fatalf("CreateHabit() error: %v", err)
	}
	return h
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	acc, err := f.svc.Balance(f.ctx, userID)
	if err != nil {
		t.Fatalf("Balance() error: %v", err)
	}
	return acc.Balance
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.EnsureUser(f.ctx, "u1", "", "")
	if err != nil {
		t.Fatalf("EnsureUser() error: %v", err)
	}
	if u.Timezone != "UTC" {
		t.Errorf("default timezone = %s, want UTC", u.Timezone)
	}

	u, err = f.svc.EnsureUser(f.ctx, "u1", "luna", "Asia/Tokyo")
	if err != nil {
		t.Fatalf("EnsureUser(update) error: %v", err)
	}
	if u.Username != "luna" || u.Timezone != "Asia/Tokyo" {
		t.Errorf("user = %+v", u)
	}

	if _, err := f.svc.EnsureUser(f.ctx, "u1", "", "Mars/Olympus"); !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Errorf("err = %v, want ErrInvalidTimezone", err)
	}
	if _, err := f.svc.EnsureUser(f.ctx, "", "", ""); !errors.Is(err, domain.ErrInvalidUser) {
		t.Errorf("err = %v, want ErrInvalidUser", err)
	}
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func TestHabitCRUD(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{InitialDays: 4})
	if h.Plant.StageName != "young" {
		t.Errorf("initial stage = %s, want young", h.Plant.StageName)
	}

	got, err := f.svc.GetHabit(f.ctx, "u1", h.ID)
	if err != nil || got.ID != h.ID {
		t.Fatalf("GetHabit() = %+v, %v", got, err)
	}

	name := "Evening journal"
	updated, err := f.svc.UpdateHabit(f.ctx, "u1", h.ID, habit.UpdateParams{Name: &name})
	if err != nil || updated.Name != name {
		t.Fatalf("UpdateHabit() = %+v, %v", updated, err)
	}

	list, err := f.svc.ListHabits(f.ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListHabits() = %d, %v", len(list), err)
	}

	if err := f.svc.DeleteHabit(f.ctx, "u1", h.ID); err != nil {
		t.Fatalf("DeleteHabit() error: %v", err)
	}
	if _, err := f.svc.GetHabit(f.ctx, "u1", h.ID); !errors.Is(err, domain.ErrHabitNotFound) {
		t.Errorf("err = %v, want ErrHabitNotFound", err)
	}
}

func TestHabit_Ownership(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{})

	if _, err := f.svc.GetHabit(f.ctx, "u2", h.ID); !errors.Is(err, domain.ErrNotOwnedByUser) {
		t.Errorf("GetHabit err = %v, want ErrNotOwnedByUser", err)
	}
	if _, err := f.svc.CheckIn(f.ctx, "u2", h.ID, false); !errors.Is(err, domain.ErrNotOwnedByUser) {
		t.Errorf("CheckIn err = %v, want ErrNotOwnedByUser", err)
	}
	if err := f.svc.DeleteHabit(f.ctx, "u2", h.ID); !errors.Is(err, domain.ErrNotOwnedByUser) {
		t.Errorf("DeleteHabit err = %v, want ErrNotOwnedByUser", err)
	}
	if _, err := f.svc.CheckIn(f.ctx, "u1", "missing", false); !errors.Is(err, domain.ErrHabitNotFound) {
		t.Errorf("CheckIn err = %v, want ErrHabitNotFound", err)
	}
}

func TestCreateHabit_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateHabit(f.ctx, "u1", habit.CreateParams{Name: ""})
	if !errors.Is(err, domain.ErrInvalidHabit) {
		t.Errorf("err = %v, want ErrInvalidHabit", err)
	}
}

// ─── Check-ins ──────────────────────────────────────────────────────────────

func TestCheckIn_PersistsAcrossDays(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{})

	for day := 1; day <= 3; day++ {
		res, err := f.svc.CheckIn(f.ctx, "u1", h.ID, false)
		if err != nil {
			t.Fatalf("day %d: CheckIn() error: %v", day, err)
		}
		if res.Habit.CurrentStreak != day {
			t.Errorf("day %d: streak = %d", day, res.Habit.CurrentStreak)
		}
		f.clock.advance(24 * time.Hour)
	}

	// Rewards: 5 + 5 + (5 + 3/3) = 16
	if got := f.balance(t, "u1"); got != 16 {
		t.Errorf("balance = %d, want 16", got)
	}
	stored, _ := f.svc.GetHabit(f.ctx, "u1", h.ID)
	if stored.CurrentStreak != 3 || stored.BestStreak != 3 || stored.Plant.GrowthPoints != 3 {
		t.Errorf("stored habit = streak %d best %d points %d", stored.CurrentStreak, stored.BestStreak, stored.Plant.GrowthPoints)
	}

	history, err := f.svc.History(f.ctx, "u1", 0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(history) != 3 || history[0].BalanceAfter != 16 || history[0].Reason != domain.ReasonCheckin {
		t.Errorf("history = %+v", history)
	}
}

func TestCheckIn_RejectionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{})
	if _, err := f.svc.CheckIn(f.ctx, "u1", h.ID, false); err != nil {
		t.Fatalf("first CheckIn() error: %v", err)
	}
	before, _ := f.svc.GetHabit(f.ctx, "u1", h.ID)

	f.clock.advance(time.Hour)
	if _, err := f.svc.CheckIn(f.ctx, "u1", h.ID, false); !errors.Is(err, domain.ErrAlreadyCompletedToday) {
		t.Fatalf("err = %v, want ErrAlreadyCompletedToday", err)
	}
	after, _ := f.svc.GetHabit(f.ctx, "u1", h.ID)
	if after.CurrentStreak != before.CurrentStreak || after.Plant.GrowthPoints != before.Plant.GrowthPoints {
		t.Error("rejected check-in changed the habit")
	}
	if got := f.balance(t, "u1"); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestCheckIn_CleanseInsufficientRollsBack(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{})
	f.svc.CheckIn(f.ctx, "u1", h.ID, false)
	f.clock.advance(72 * time.Hour)
	res, err := f.svc.CheckIn(f.ctx, "u1", h.ID, false)
	if err != nil || !res.Habit.Wilted {
		t.Fatalf("setup: wilted=%v err=%v", res.Habit.Wilted, err)
	}
	balance := f.balance(t, "u1") // 5 + 5

	f.clock.advance(24 * time.Hour)
	if _, err := f.svc.CheckIn(f.ctx, "u1", h.ID, true); !errors.Is(err, domain.ErrInsufficientMoonlight) {
		t.Fatalf("err = %v, want ErrInsufficientMoonlight", err)
	}
	stored, _ := f.svc.GetHabit(f.ctx, "u1", h.ID)
	if !stored.Wilted || stored.CurrentStreak != 1 {
		t.Errorf("habit changed: wilted=%v streak=%d", stored.Wilted, stored.CurrentStreak)
	}
	if got := f.balance(t, "u1"); got != balance {
		t.Errorf("balance = %d, want %d", got, balance)
	}
}

func TestCheckIn_ConcurrentAcceptsOne(t *testing.T) {
	f := newFixture(t)
	h := f.habit(t, "u1", habit.CreateParams{})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckIn(f.ctx, "u1", h.ID, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	accepted := 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, domain.ErrAlreadyCompletedToday):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("accepted = %d, want 1", accepted)
	}
	if got := f.balance(t, "u1"); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

// ─── Moonlight ──────────────────────────────────────────────────────────────

func TestDailyBonus(t *testing.T) {
	f := newFixture(t)
	first, err := f.svc.ClaimDailyBonus(f.ctx, "u1")
	if err != nil {
		t.Fatalf("ClaimDailyBonus() error: %v", err)
	}
	if !first.Applied || first.Amount != 20 || first.Balance != 20 {
		t.Errorf("first claim = %+v", first)
	}

	second, err := f.svc.ClaimDailyBonus(f.ctx, "u1")
	if err != nil {
		t.Fatalf("second claim error: %v", err)
	}
	if second.Applied || second.Balance != 20 {
		t.Errorf("second claim = %+v", second)
	}

	f.clock.advance(24 * time.Hour)
	third, _ := f.svc.ClaimDailyBonus(f.ctx, "u1")
	if !third.Applied || third.Balance != 40 {
		t.Errorf("next-day claim = %+v", third)
	}
}

func TestSpend(t *testing.T) {
	f := newFixture(t)
	f.svc.ClaimDailyBonus(f.ctx, "u1")

	acc, err := f.svc.Spend(f.ctx, "u1", 15, "lantern")
	if err != nil || acc.Balance != 5 {
		t.Fatalf("Spend() = %+v, %v", acc, err)
	}
	if _, err := f.svc.Spend(f.ctx, "u1", 6, "lantern"); !errors.Is(err, domain.ErrInsufficientMoonlight) {
		t.Errorf("err = %v, want ErrInsufficientMoonlight", err)
	}
	if _, err := f.svc.Spend(f.ctx, "u1", 0, "lantern"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
	if got := f.balance(t, "u1"); got != 5 {
		t.Errorf("balance = %d, want 5", got)
	}
}

func TestAdjust_ClampsAtZero(t *testing.T) {
	f := newFixture(t)

	acc, applied, err := f.svc.Adjust(f.ctx, "u1", 30, "")
	if err != nil || acc.Balance != 30 || applied != 30 {
		t.Fatalf("Adjust(+30) = %+v, %d, %v", acc, applied, err)
	}
	acc, applied, err = f.svc.Adjust(f.ctx, "u1", -50, "refund")
	if err != nil {
		t.Fatalf("Adjust(-50) error: %v", err)
	}
	if acc.Balance != 0 || applied != -30 {
		t.Errorf("balance=%d applied=%d, want 0 -30", acc.Balance, applied)
	}
	if got := f.balance(t, "u1"); got != 0 {
		t.Errorf("stored balance = %d, want 0", got)
	}

	entries, err := f.svc.History(f.ctx, "u1", 10)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Kind != domain.EntryAdjust {
			t.Errorf("entry kind = %s, want %s", e.Kind, domain.EntryAdjust)
		}
	}

	// Nothing left to debit: no entry is written.
	if _, applied, _ := f.svc.Adjust(f.ctx, "u1", -5, "refund"); applied != 0 {
		t.Errorf("applied = %d, want 0", applied)
	}
	if entries, _ := f.svc.History(f.ctx, "u1", 10); len(entries) != 2 {
		t.Errorf("entries = %d after empty adjust, want 2", len(entries))
	}
}

// ─── Artifacts ──────────────────────────────────────────────────────────────

func TestDiscover_EmptyCatalog(t *testing.T) {
	f := newFixture(t)
	f.svc.ClaimDailyBonus(f.ctx, "u1")
	if _, err := f.svc.Discover(f.ctx, "u1"); !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("err = %v, want ErrEmptyCatalog", err)
	}
	if got := f.balance(t, "u1"); got != 20 {
		t.Errorf("balance = %d, want 20", got)
	}
}

func TestDiscover_OwnsThenDuplicates(t *testing.T) {
	f := newFixture(t)
	entries := []catalog.Entry{
		{Code: "a", Name: "A", Rarity: "common"},
		{Code: "b", Name: "B", Rarity: "rare"},
	}
	if _, err := f.svc.SeedCatalog(f.ctx, catalog.Definitions(entries, f.clock.Now())); err != nil {
		t.Fatalf("SeedCatalog() error: %v", err)
	}
	// 160 moonlight covers three discoveries.
	for i := 0; i < 8; i++ {
		f.svc.ClaimDailyBonus(f.ctx, "u1")
		f.clock.advance(24 * time.Hour)
	}

	codes := []string{}
	for i := 0; i < 3; i++ {
		d, err := f.svc.Discover(f.ctx, "u1")
		if err != nil {
			t.Fatalf("discover #%d: %v", i+1, err)
		}
		codes = append(codes, d.Definition.Code)
		f.clock.advance(time.Minute)
		if wantDup := i == 2; d.Duplicate != wantDup {
			t.Errorf("discover #%d duplicate = %v, want %v", i+1, d.Duplicate, wantDup)
		}
	}
	if codes[0] != "a" || codes[1] != "b" || codes[2] != "a" {
		t.Errorf("draw order = %v, want [a b a]", codes)
	}
	if got := f.balance(t, "u1"); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}

	owned, err := f.svc.ListArtifacts(f.ctx, "u1")
	if err != nil {
		t.Fatalf("ListArtifacts() error: %v", err)
	}
	if len(owned) != 2 || owned[0].Definition.Code != "a" {
		t.Errorf("owned = %+v", owned)
	}

	yes := true
	ua, err := f.svc.SetArtifactFlags(f.ctx, "u1", owned[0].ID, garden.ArtifactFlags{Favorite: &yes})
	if err != nil || !ua.Favorite {
		t.Errorf("SetArtifactFlags() = %+v, %v", ua, err)
	}
	if _, err := f.svc.SetArtifactFlags(f.ctx, "u2", owned[0].ID, garden.ArtifactFlags{Favorite: &yes}); !errors.Is(err, domain.ErrNotOwnedByUser) {
		t.Errorf("err = %v, want ErrNotOwnedByUser", err)
	}
	if _, err := f.svc.SetArtifactFlags(f.ctx, "u1", "nope", garden.ArtifactFlags{}); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Errorf("err = %v, want ErrArtifactNotFound", err)
	}
}

// ─── Garden ─────────────────────────────────────────────────────────────────

func TestGardenState(t *testing.T) {
	f := newFixture(t)
	a := f.habit(t, "u1", habit.CreateParams{Name: "Run"})
	f.clock.advance(time.Minute)
	b := f.habit(t, "u1", habit.CreateParams{Name: "Read"})
	off := false
	f.svc.UpdateHabit(f.ctx, "u1", b.ID, habit.UpdateParams{Active: &off})
	f.svc.CheckIn(f.ctx, "u1", a.ID, false)

	st, err := f.svc.GardenState(f.ctx, "u1")
	if err != nil {
		t.Fatalf("GardenState() error: %v", err)
	}
	if len(st.Plants) != 2 || st.ActiveHabits != 1 || st.Balance != 5 {
		t.Errorf("state = %+v", st)
	}
	if st.Plants[0].HabitName != "Run" || st.Plants[0].CurrentStreak != 1 {
		t.Errorf("first plant = %+v", st.Plants[0])
	}
	if st.Moon.Timezone != "UTC" || st.Moon.EnergyMultiplier != 1.0 {
		t.Errorf("moon = %+v", st.Moon)
	}
}

func TestMoonToday_UsesUserTimezone(t *testing.T) {
	f := newFixture(t)
	// 2025-05-01 08:00 UTC is already May 1 evening in Tokyo, but still
	// April 30 in Honolulu.
	f.svc.EnsureUser(f.ctx, "west", "", "Pacific/Honolulu")
	info, err := f.svc.MoonToday(f.ctx, "west")
	if err != nil {
		t.Fatalf("MoonToday() error: %v", err)
	}
	if info.LocalDate.String() != "2025-04-30" || info.Timezone != "Pacific/Honolulu" {
		t.Errorf("moon = %+v", info)
	}

	anon, _ := f.svc.MoonToday(f.ctx, "")
	if anon.LocalDate.String() != "2025-05-01" || anon.Timezone != "UTC" {
		t.Errorf("anonymous moon = %+v", anon)
	}
}

func TestMoonIn(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.MoonIn(f.ctx, "Asia/Tokyo")
	if err != nil || info.Timezone != "Asia/Tokyo" {
		t.Errorf("MoonIn() = %+v, %v", info, err)
	}
	if _, err := f.svc.MoonIn(f.ctx, "Nowhere/Special"); !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Errorf("err = %v, want ErrInvalidTimezone", err)
	}
}
