package health

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/catalog"
	"github.com/moonlit-garden/moonlit/internal/infra/phasecache"
	"github.com/moonlit-garden/moonlit/internal/infra/storage"
)

func newTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *storage.DB) {
	t.Helper()
	defs := catalog.Definitions(catalog.Builtin, time.Now())
	err := db.Update(context.Background(), func(tx domain.GardenTx) error {
		for _, d := range defs {
			if err := tx.UpsertArtifactDefinition(context.Background(), d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

type pingCache struct {
	phasecache.Memory
	err error
}

func (p *pingCache) Ping(context.Context) error { return p.err }

func statusOf(t *testing.T, c *Checker, name string) Status {
	t.Helper()
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("check %q not found", name)
	return Status{}
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestChecker_AllHealthy(t *testing.T) {
	db := newTestDB(t)
	seed(t, db)
	c := NewChecker(0, StorageCheck(db), CacheCheck(phasecache.NewMemory(time.Hour, 10)), CatalogCheck(db))
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}

	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(time.Minute, StorageCheck(newTestDB(t)))
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_EmptyCatalog(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, CatalogCheck(db))
	c.RunOnce(context.Background())

	s := statusOf(t, c, "artifact_catalog")
	if s.Healthy || s.Error == "" {
		t.Errorf("empty catalog status = %+v", s)
	}
}

func TestChecker_ClosedStorage(t *testing.T) {
	db, err := storage.OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	db.Close()

	c := NewChecker(time.Minute, StorageCheck(db))
	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("closed database should be unhealthy")
	}
}

func TestChecker_CacheCheck(t *testing.T) {
	tests := []struct {
		name    string
		cache   domain.PhaseCache
		healthy bool
	}{
		{"no cache", nil, true},
		{"memory", phasecache.NewMemory(time.Hour, 10), true},
		{"reachable", &pingCache{}, true},
		{"unreachable", &pingCache{err: errors.New("connection refused")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Minute, CacheCheck(tt.cache))
			c.RunOnce(context.Background())
			if got := statusOf(t, c, "phase_cache").Healthy; got != tt.healthy {
				t.Errorf("healthy = %v, want %v", got, tt.healthy)
			}
		})
	}
}

func TestChecker_FailingCheckRecovers(t *testing.T) {
	recovered := false
	c := NewChecker(time.Minute, Check{
		Name:      "always_fail",
		CheckFn:   func(ctx context.Context) error { return os.ErrPermission },
		RecoverFn: func(ctx context.Context) error { recovered = true; return nil },
	})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("error message should be populated")
	}
	if !recovered {
		t.Error("RecoverFn should run after a failure")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	c := NewChecker(time.Minute, StorageCheck(newTestDB(t)))
	c.RunOnce(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()
	s1[0].Healthy = false
	if !s2[0].Healthy {
		t.Error("Statuses() should return a copy, not a reference")
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(time.Hour, StorageCheck(newTestDB(t)))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
