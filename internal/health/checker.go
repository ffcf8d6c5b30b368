// Package health runs periodic dependency checks for the daemon.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/metrics"
)

// DefaultInterval is how often Run repeats the checks.
const DefaultInterval = 60 * time.Second

// Check defines a single health check with an optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewChecker creates a checker over the given checks.
func NewChecker(interval time.Duration, checks ...Check) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Checker{
		interval: interval,
		timeout:  5 * time.Second,
		checks:   checks,
		now:      time.Now,
	}
}

// StorageCheck pings the database.
func StorageCheck(db Pinger) Check {
	return Check{Name: "storage", CheckFn: db.Ping}
}

// CacheCheck pings the phase cache when the backend supports it. Caches
// without a network hop are always healthy.
func CacheCheck(cache domain.PhaseCache) Check {
	return Check{
		Name: "phase_cache",
		CheckFn: func(ctx context.Context) error {
			if p, ok := cache.(Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		},
	}
}

// CatalogCheck fails while no artifact definitions are loaded, since every
// discovery would be rejected.
func CatalogCheck(store domain.GardenStore) Check {
	return Check{
		Name: "artifact_catalog",
		CheckFn: func(ctx context.Context) error {
			return store.View(ctx, func(tx domain.GardenTx) error {
				defs, err := tx.ListArtifactDefinitions(ctx)
				if err != nil {
					return err
				}
				if len(defs) == 0 {
					return fmt.Errorf("catalog: %w", domain.ErrEmptyCatalog)
				}
				return nil
			})
		},
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check now and records the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: c.now()}
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := check.CheckFn(cctx)
		cancel()
		if err != nil {
			s.Error = err.Error()
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
		}
		gauge := 0.0
		if s.Healthy {
			gauge = 1
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(gauge)
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
