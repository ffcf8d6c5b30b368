// Package daemon manages the garden daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/moonlit-garden/moonlit/internal/app/artifact"
	"github.com/moonlit-garden/moonlit/internal/app/growth"
	"github.com/moonlit-garden/moonlit/internal/app/habit"
	"github.com/moonlit-garden/moonlit/internal/app/lunar"
	"github.com/moonlit-garden/moonlit/internal/infra/phasecache"
	"github.com/moonlit-garden/moonlit/internal/infra/storage"
	"github.com/moonlit-garden/moonlit/internal/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MOONLIT_"

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig         `toml:"api"`
	Storage   storage.Config    `toml:"storage"`
	Logging   logger.Config     `toml:"logging"`
	Cache     phasecache.Config `toml:"cache"`
	Telemetry TelemetryConfig   `toml:"telemetry"`
	Moon      lunar.Config      `toml:"moon"`
	Growth    GrowthConfig      `toml:"growth"`
	Economy   EconomyConfig     `toml:"economy"`
	Artifacts ArtifactsConfig   `toml:"artifacts"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// TelemetryConfig controls metrics and health reporting.
type TelemetryConfig struct {
	Prometheus     bool          `toml:"prometheus"`
	HealthInterval time.Duration `toml:"health_interval"`
}

// GrowthConfig lists the plant growth stages in ascending order.
type GrowthConfig struct {
	Stages []growth.Stage `toml:"stages"`
}

// EconomyConfig tunes moonlight rewards and costs.
type EconomyConfig struct {
	Checkin    habit.Config `toml:"checkin"`
	DailyBonus int64        `toml:"daily_bonus"`
}

// ArtifactsConfig controls discovery and the catalog.
type ArtifactsConfig struct {
	Discovery artifact.Config `toml:"discovery"`
	// CatalogFile is a YAML catalog imported at startup. Empty: the
	// builtin catalog seeds an empty database.
	CatalogFile string `toml:"catalog_file"`
}

// envOverrides are the environment variables honored on top of the file.
// Zero values leave the file setting alone.
type envOverrides struct {
	Host            string `env:"HOST"`
	Port            int    `env:"PORT"`
	StorageDriver   string `env:"STORAGE_DRIVER"`
	DatabaseURL     string `env:"DATABASE_URL"`
	CacheBackend    string `env:"CACHE_BACKEND"`
	RedisURL        string `env:"REDIS_URL"`
	DefaultTimezone string `env:"DEFAULT_TIMEZONE"`
	LogLevel        string `env:"LOG_LEVEL"`
	LogFile         string `env:"LOG_FILE"`
	Prometheus      *bool  `env:"PROMETHEUS"`
	CatalogFile     string `env:"CATALOG_FILE"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	homeDir := moonlitHome()
	logging := logger.DefaultConfig()
	logging.File = filepath.Join(homeDir, "moonlit.log")
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8742,
			RequestTimeout: 30 * time.Second,
		},
		Storage: storage.Config{
			Driver: storage.DriverSQLite,
			Dir:    homeDir,
		},
		Logging: logging,
		Cache:   phasecache.DefaultConfig(),
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: 60 * time.Second,
		},
		Moon:   lunar.DefaultConfig(),
		Growth: GrowthConfig{Stages: growth.DefaultStages()},
		Economy: EconomyConfig{
			Checkin:    habit.DefaultConfig(),
			DailyBonus: 20,
		},
		Artifacts: ArtifactsConfig{Discovery: artifact.DefaultConfig()},
	}
}

// LoadConfig reads $MOONLIT_HOME/config.toml over the defaults, then
// applies MOONLIT_* environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile is LoadConfig for an explicit path. A missing file
// yields the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	setString(&cfg.API.Host, o.Host)
	if o.Port != 0 {
		cfg.API.Port = o.Port
	}
	setString(&cfg.Storage.Driver, o.StorageDriver)
	if o.DatabaseURL != "" {
		cfg.Storage.DSN = o.DatabaseURL
		if o.StorageDriver == "" {
			cfg.Storage.Driver = storage.DriverPostgres
		}
	}
	setString(&cfg.Cache.Backend, o.CacheBackend)
	if o.RedisURL != "" {
		cfg.Cache.RedisURL = o.RedisURL
		if o.CacheBackend == "" {
			cfg.Cache.Backend = "redis"
		}
	}
	setString(&cfg.Moon.DefaultTimezone, o.DefaultTimezone)
	setString(&cfg.Logging.Level, o.LogLevel)
	setString(&cfg.Logging.File, o.LogFile)
	if o.Prometheus != nil {
		cfg.Telemetry.Prometheus = *o.Prometheus
	}
	setString(&cfg.Artifacts.CatalogFile, o.CatalogFile)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api: port %d out of range", c.API.Port)
	}
	switch c.Storage.Driver {
	case storage.DriverSQLite:
	case storage.DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage: postgres driver needs a dsn")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Cache.Backend {
	case "memory", "none", "":
	case "redis":
		if c.Cache.RedisURL == "" {
			return errors.New("cache: redis backend needs redis_url")
		}
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.Timeout < 0 {
		return errors.New("cache: timeout must not be negative")
	}
	if err := c.Moon.Validate(); err != nil {
		return fmt.Errorf("moon: %w", err)
	}
	if _, err := growth.NewMapper(c.Growth.Stages); err != nil {
		return fmt.Errorf("growth: %w", err)
	}
	e := c.Economy
	if e.Checkin.BaseReward < 0 || e.Checkin.StreakBonusCap < 0 || e.Checkin.CleanseCost < 0 || e.DailyBonus < 0 {
		return errors.New("economy: rewards and costs must not be negative")
	}
	if e.Checkin.StreakBonusDivisor <= 0 {
		return errors.New("economy: streak_bonus_divisor must be positive")
	}
	if err := c.Artifacts.Discovery.Validate(); err != nil {
		return fmt.Errorf("artifacts: %w", err)
	}
	return nil
}

// SaveConfig writes the config to $MOONLIT_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigFile(ConfigPath(), cfg)
}

// SaveConfigFile writes cfg as TOML to path.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath is where LoadConfig looks for the config file.
func ConfigPath() string {
	return filepath.Join(moonlitHome(), "config.toml")
}

// moonlitHome returns the data directory.
func moonlitHome() string {
	if dir := os.Getenv("MOONLIT_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".moonlit")
}

// Home is exported for use by other packages.
func Home() string {
	return moonlitHome()
}
