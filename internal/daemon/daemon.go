package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/moonlit-garden/moonlit/internal/api"
	"github.com/moonlit-garden/moonlit/internal/app/artifact"
	"github.com/moonlit-garden/moonlit/internal/app/garden"
	"github.com/moonlit-garden/moonlit/internal/app/growth"
	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/app/lunar"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/health"
	"github.com/moonlit-garden/moonlit/internal/infra/catalog"
	"github.com/moonlit-garden/moonlit/internal/infra/phasecache"
	"github.com/moonlit-garden/moonlit/internal/infra/storage"
	"github.com/moonlit-garden/moonlit/internal/logger"
)

// Daemon is the garden runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *storage.DB
	Cache  domain.PhaseCache
	Garden *garden.Service
	Server *api.Server
	Health *health.Checker
	log    *log.Logger
	cancel context.CancelFunc
}

// New loads the config file and creates a Daemon.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	l := logger.Component("daemon")

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	cache, err := phasecache.New(cfg.Cache)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("phase cache: %w", err)
	}

	stages, err := growth.NewMapper(cfg.Growth.Stages)
	if err != nil {
		db.Close()
		return nil, err
	}
	moon := lunar.NewCalculator(cfg.Moon, cache)
	moon.SetCacheTimeout(cfg.Cache.Timeout)
	svc := garden.NewService(db, garden.Options{
		Moon:       moon,
		Stages:     stages,
		Checkins:   habit.NewEngine(cfg.Economy.Checkin, stages),
		Discovery:  artifact.NewEngine(cfg.Artifacts.Discovery, nil),
		DailyBonus: cfg.Economy.DailyBonus,
		Logger:     logger.Component("garden"),
	})

	checker := health.NewChecker(cfg.Telemetry.HealthInterval,
		health.StorageCheck(db),
		health.CacheCheck(cache),
		health.CatalogCheck(db),
	)

	srv := api.NewServer(svc, logger.Component("api"))
	srv.SetHealth(checker)
	if cfg.API.RequestTimeout > 0 {
		srv.SetTimeout(cfg.API.RequestTimeout)
	}
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	d := &Daemon{
		Config: cfg,
		DB:     db,
		Cache:  cache,
		Garden: svc,
		Server: srv,
		Health: checker,
		log:    l,
	}

	if err := d.seedCatalog(context.Background()); err != nil {
		d.Close()
		return nil, err
	}
	l.Info("daemon ready", "storage", db.Driver(), "cache", cfg.Cache.Backend, "tz", cfg.Moon.DefaultTimezone)
	return d, nil
}

// seedCatalog imports the configured catalog file, or the builtin catalog
// when the database has none.
func (d *Daemon) seedCatalog(ctx context.Context) error {
	var entries []catalog.Entry
	switch {
	case d.Config.Artifacts.CatalogFile != "":
		loaded, err := catalog.Load(d.Config.Artifacts.CatalogFile)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		entries = loaded
	default:
		defs, err := d.Garden.Catalog(ctx)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		if len(defs) > 0 {
			return nil
		}
		entries = catalog.Builtin
	}
	n, err := d.Garden.SeedCatalog(ctx, catalog.Definitions(entries, time.Now()))
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	d.log.Info("catalog loaded", "artifacts", n)
	return nil
}

// Addr is the host:port the API listens on.
func (d *Daemon) Addr() string {
	return net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := d.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigCh:
			d.log.Info("shutting down", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.log.Info("serving", "addr", "http://"+addr, "metrics", d.Config.Telemetry.Prometheus)
	err := httpServer.ListenAndServe()
	cancel()
	<-done
	d.closeStores()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	d.closeStores()
}

func (d *Daemon) closeStores() {
	if c, ok := d.Cache.(io.Closer); ok {
		_ = c.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
