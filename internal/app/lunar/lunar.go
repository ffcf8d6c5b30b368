// Package lunar computes the simulated moon phase that drives the garden's
// reward multipliers. It is a deliberately simple, deterministic model of the
// synodic cycle, not an ephemeris.
package lunar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // user timezones must resolve on hosts without zoneinfo

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// DefaultCacheTimeout bounds one phase cache call.
const DefaultCacheTimeout = 100 * time.Millisecond

// SynodicMonth is the mean length of a lunar cycle in days.
const SynodicMonth = 29.53058867

// referenceNewMoon is the new moon the cycle is counted from.
var referenceNewMoon = domain.NewDate(2000, time.January, 6)

// Boundaries are the moon ages (in days) that separate phase buckets.
// Ages below NewEnd or above WaningEnd are "new"; [NewEnd, WaxingEnd) is
// "waxing"; [WaxingEnd, FullEnd) is "full"; the rest is "waning".
type Boundaries struct {
	NewEnd    float64 `toml:"new_end"`
	WaxingEnd float64 `toml:"waxing_end"`
	FullEnd   float64 `toml:"full_end"`
	WaningEnd float64 `toml:"waning_end"`
}

// Config tunes the calculator. Multipliers and themes are economy knobs,
// so they live in configuration rather than in code.
type Config struct {
	DefaultTimezone string                      `toml:"default_timezone"`
	Boundaries      Boundaries                  `toml:"boundaries"`
	Multipliers     map[domain.MoonPhase]float64 `toml:"multipliers"`
	Themes          map[domain.MoonPhase]string  `toml:"themes"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		DefaultTimezone: "Asia/Phnom_Penh",
		Boundaries: Boundaries{
			NewEnd:    3,
			WaxingEnd: 11,
			FullEnd:   19,
			WaningEnd: 27,
		},
		Multipliers: map[domain.MoonPhase]float64{
			domain.PhaseNew:    0.9,
			domain.PhaseWaxing: 1.1,
			domain.PhaseFull:   1.3,
			domain.PhaseWaning: 1.0,
		},
		Themes: map[domain.MoonPhase]string{
			domain.PhaseNew:    "night_dim",
			domain.PhaseWaxing: "night_rising",
			domain.PhaseFull:   "full_moon_festival",
			domain.PhaseWaning: "night_fading",
		},
	}
}

// Validate checks that the boundaries are strictly increasing and inside
// one cycle.
func (c Config) Validate() error {
	b := c.Boundaries
	if !(0 < b.NewEnd && b.NewEnd < b.WaxingEnd && b.WaxingEnd < b.FullEnd &&
		b.FullEnd < b.WaningEnd && b.WaningEnd < SynodicMonth) {
		return fmt.Errorf("moon boundaries must be increasing within (0, %.2f): %+v", SynodicMonth, b)
	}
	for phase, m := range c.Multipliers {
		if m < 0 {
			return fmt.Errorf("moon multiplier for %s is negative", phase)
		}
	}
	return nil
}

// Fingerprint is a short digest of the tuning. Cache keys include it so a
// retuned deployment never reads phases computed under the old tuning.
func (c Config) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tz=%s;b=%v;", c.DefaultTimezone, c.Boundaries)
	phases := make([]string, 0, len(c.Multipliers)+len(c.Themes))
	for p, m := range c.Multipliers {
		phases = append(phases, fmt.Sprintf("m.%s=%g", p, m))
	}
	for p, th := range c.Themes {
		phases = append(phases, fmt.Sprintf("t.%s=%s", p, th))
	}
	sort.Strings(phases)
	sb.WriteString(strings.Join(phases, ";"))
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:6])
}

// Calculator maps dates to moon phases. Safe for concurrent use.
type Calculator struct {
	cfg          Config
	cache        domain.PhaseCache
	cacheTimeout time.Duration
	fingerprint  string
	fallback     *time.Location
}

// NewCalculator creates a calculator. cache may be nil.
func NewCalculator(cfg Config, cache domain.PhaseCache) *Calculator {
	fallback, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil || cfg.DefaultTimezone == "" {
		fallback = time.UTC
	}
	return &Calculator{
		cfg:          cfg,
		cache:        cache,
		cacheTimeout: DefaultCacheTimeout,
		fingerprint:  cfg.Fingerprint(),
		fallback:     fallback,
	}
}

// SetCacheTimeout bounds each cache call. A slow cache then costs at most
// d per lookup and the phase is computed instead.
func (c *Calculator) SetCacheTimeout(d time.Duration) {
	if d > 0 {
		c.cacheTimeout = d
	}
}

// Config returns the calculator's tuning.
func (c *Calculator) Config() Config { return c.cfg }

// Location resolves a timezone name. Empty or unknown names fall back to
// the configured default timezone.
func (c *Calculator) Location(tz string) *time.Location {
	if tz == "" {
		return c.fallback
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return c.fallback
	}
	return loc
}

// LocalDate returns the calendar date of t in tz.
func (c *Calculator) LocalDate(t time.Time, tz string) domain.LocalDate {
	return domain.DateOf(t.In(c.Location(tz)))
}

// ForInstant returns the phase for the local date of t in tz.
func (c *Calculator) ForInstant(ctx context.Context, t time.Time, tz string) domain.MoonPhaseInfo {
	return c.ForDate(ctx, c.LocalDate(t, tz), tz)
}

// ForDate returns the phase for an already-resolved local date.
func (c *Calculator) ForDate(ctx context.Context, d domain.LocalDate, tz string) domain.MoonPhaseInfo {
	tzName := c.Location(tz).String()

	key := c.cacheKey(tzName, d)
	if c.cache != nil {
		if info, ok := c.cacheGet(ctx, key); ok {
			return info
		}
	}

	info := c.compute(d, tzName)
	if c.cache != nil {
		c.cacheSet(ctx, key, info)
	}
	return info
}

func (c *Calculator) cacheGet(ctx context.Context, key string) (domain.MoonPhaseInfo, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cacheTimeout)
	defer cancel()
	return c.cache.Get(ctx, key)
}

func (c *Calculator) cacheSet(ctx context.Context, key string, info domain.MoonPhaseInfo) {
	ctx, cancel := context.WithTimeout(ctx, c.cacheTimeout)
	defer cancel()
	c.cache.Set(ctx, key, info)
}

func (c *Calculator) cacheKey(tz string, d domain.LocalDate) string {
	return "moonphase:" + c.fingerprint + ":" + tz + ":" + d.String()
}

func (c *Calculator) compute(d domain.LocalDate, tz string) domain.MoonPhaseInfo {
	age := AgeDays(d)
	phase := c.PhaseForAge(age)

	multiplier, ok := c.cfg.Multipliers[phase]
	if !ok {
		multiplier = 1.0
	}
	theme, ok := c.cfg.Themes[phase]
	if !ok {
		theme = "night"
	}

	return domain.MoonPhaseInfo{
		Phase:            phase,
		AgeDays:          age,
		Illumination:     Illumination(age),
		EnergyMultiplier: multiplier,
		ThemeID:          theme,
		LocalDate:        d,
		Timezone:         tz,
	}
}

// PhaseForAge buckets a moon age using the configured boundaries.
func (c *Calculator) PhaseForAge(age float64) domain.MoonPhase {
	b := c.cfg.Boundaries
	switch {
	case age < b.NewEnd || age > b.WaningEnd:
		return domain.PhaseNew
	case age < b.WaxingEnd:
		return domain.PhaseWaxing
	case age < b.FullEnd:
		return domain.PhaseFull
	default:
		return domain.PhaseWaning
	}
}

// AgeDays returns the moon's age on d, in [0, SynodicMonth).
func AgeDays(d domain.LocalDate) float64 {
	days := float64(d.DaysSince(referenceNewMoon))
	age := math.Mod(days, SynodicMonth)
	if age < 0 {
		age += SynodicMonth
	}
	return age
}

// Illumination approximates the lit fraction of the disc, clamped to [0, 1].
// Cosmetic only.
func Illumination(age float64) float64 {
	v := 0.5 * (1 - math.Cos(2*math.Pi*age/SynodicMonth))
	return math.Max(0, math.Min(1, v))
}
