// Package phasecache stores computed moon phases so repeated lookups for
// the same local date skip the astronomy. Two backends: an in-process
// TTL map and Redis for deployments with several API instances.
//
// A cache failure is never an error to the caller; it is a miss.
package phasecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/metrics"
)

// Config selects a backend.
type Config struct {
	// Backend is "memory", "redis" or "none".
	Backend    string        `toml:"backend"`
	RedisURL   string        `toml:"redis_url"`
	TTL        time.Duration `toml:"ttl"`
	MaxEntries int           `toml:"max_entries"`
	// Timeout bounds each lookup or store; past it the lookup is a miss.
	Timeout time.Duration `toml:"timeout"`
}

// DefaultConfig caches in memory for a day.
func DefaultConfig() Config {
	return Config{Backend: "memory", TTL: 24 * time.Hour, MaxEntries: 4096, Timeout: 100 * time.Millisecond}
}

// New builds the configured cache. "none" returns a nil cache, which the
// lunar calculator treats as disabled.
func New(cfg Config) (domain.PhaseCache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts.ContextTimeoutEnabled = true
		return NewRedis(redis.NewClient(opts), cfg.TTL), nil
	case "none":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown phase cache backend %q", cfg.Backend)
}

func record(hit bool) {
	if hit {
		metrics.PhaseCacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.PhaseCacheLookups.WithLabelValues("miss").Inc()
	}
}

// ─── Memory ─────────────────────────────────────────────────────────────────

type memoryEntry struct {
	info    domain.MoonPhaseInfo
	expires time.Time
}

// Memory is a bounded in-process cache with per-entry expiry.
// Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	max     int
	now     func() time.Time
}

// NewMemory creates a memory cache. ttl <= 0 keeps entries forever;
// max <= 0 leaves the size unbounded.
func NewMemory(ttl time.Duration, max int) *Memory {
	return &Memory{entries: make(map[string]memoryEntry), ttl: ttl, max: max, now: time.Now}
}

// Get returns a live entry.
func (m *Memory) Get(_ context.Context, key string) (domain.MoonPhaseInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if ok && m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	record(ok)
	return e.info, ok
}

// Set stores info under key. When full, expired entries are swept first;
// if that frees nothing the whole map is dropped.
func (m *Memory) Set(_ context.Context, key string, info domain.MoonPhaseInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.max > 0 && len(m.entries) >= m.max {
		m.sweepLocked()
		if len(m.entries) >= m.max {
			clear(m.entries)
		}
	}
	m.entries[key] = memoryEntry{info: info, expires: m.now().Add(m.ttl)}
}

// Len returns the number of stored entries, live or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// ─── Redis ──────────────────────────────────────────────────────────────────

// Redis stores phases as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Get returns a cached phase; any Redis or decode error is a miss.
func (r *Redis) Get(ctx context.Context, key string) (domain.MoonPhaseInfo, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		record(false)
		return domain.MoonPhaseInfo{}, false
	}
	var info domain.MoonPhaseInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		record(false)
		return domain.MoonPhaseInfo{}, false
	}
	record(true)
	return info, true
}

// Set writes the phase; failures are dropped.
func (r *Redis) Set(ctx context.Context, key string, info domain.MoonPhaseInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	r.client.Set(ctx, key, raw, r.ttl)
}

// Ping reports Redis connectivity for health checks.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
