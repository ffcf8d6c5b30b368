// Package storage provides SQL persistence for the garden.
// SQLite (pure Go, WAL mode) is the default backend; PostgreSQL is
// supported through lib/pq for shared deployments.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pq "github.com/lib/pq"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates the backend.
type Config struct {
	Driver string `toml:"driver"`
	// Dir holds garden.db for the sqlite driver.
	Dir string `toml:"dir"`
	// DSN is the PostgreSQL connection string.
	DSN string `toml:"dsn"`
}

// DB wraps a SQL connection pool with migrations and a placeholder dialect.
type DB struct {
	db      *sql.DB
	dialect dialect
}

var _ domain.GardenStore = (*DB)(nil)

// Open connects to the configured backend and migrates it.
func Open(cfg Config) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return OpenSQLite(cfg.Dir)
	case DriverPostgres:
		return OpenPostgres(cfg.DSN)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// OpenSQLite creates or opens the SQLite database at dir/garden.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func OpenSQLite(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "garden.db")
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return finishOpen(db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL using dsn.
func OpenPostgres(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is empty")
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	return finishOpen(db, postgresDialect)
}

func finishOpen(db *sql.DB, d dialect) (*DB, error) {
	s := &DB{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver reports the backend name.
func (d *DB) Driver() string { return d.dialect.name }

// Update runs fn in a read-write transaction.
func (d *DB) Update(ctx context.Context, fn func(domain.GardenTx) error) error {
	return d.inTx(ctx, true, fn)
}

// View runs fn in a transaction that is always rolled back.
func (d *DB) View(ctx context.Context, fn func(domain.GardenTx) error) error {
	return d.inTx(ctx, false, fn)
}

func (d *DB) inTx(ctx context.Context, commit bool, fn func(domain.GardenTx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	t := &tx{tx: sqlTx, d: d.dialect, write: commit}
	if err := fn(t); err != nil {
		sqlTx.Rollback()
		return err
	}
	if !commit {
		return sqlTx.Rollback()
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ─── Dialect ────────────────────────────────────────────────────────────────

// dialect captures the few places where SQLite and PostgreSQL differ.
// Queries are written with ? placeholders and rebound per backend.
type dialect struct {
	name      string
	numbered  bool   // $1, $2 placeholders
	forUpdate string // row-lock suffix for reads that precede a write
}

var (
	sqliteDialect   = dialect{name: DriverSQLite}
	postgresDialect = dialect{name: DriverPostgres, numbered: true, forUpdate: " FOR UPDATE"}
)

// rebind rewrites ? placeholders for the backend.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ─── Migrations ─────────────────────────────────────────────────────────────

// migrate runs idempotent schema migrations. Timestamps are unix seconds;
// calendar dates are YYYY-MM-DD text.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL DEFAULT '',
			timezone   TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS habits (
			id                    TEXT PRIMARY KEY,
			user_id               TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name                  TEXT NOT NULL,
			description           TEXT NOT NULL DEFAULT '',
			is_active             BOOLEAN NOT NULL DEFAULT TRUE,
			initial_progress_days INTEGER NOT NULL DEFAULT 0,
			frequency_type        TEXT NOT NULL DEFAULT 'daily',
			frequency_value       INTEGER NOT NULL DEFAULT 1,
			current_streak        INTEGER NOT NULL DEFAULT 0,
			best_streak           INTEGER NOT NULL DEFAULT 0,
			last_checkin_date     TEXT,
			last_checkin_at       BIGINT,
			cooldown_hours        INTEGER NOT NULL DEFAULT 0,
			is_wilted             BOOLEAN NOT NULL DEFAULT FALSE,
			last_wilted_at        BIGINT,
			created_at            BIGINT NOT NULL,
			updated_at            BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id)`,

		`CREATE TABLE IF NOT EXISTS plants (
			id              TEXT PRIMARY KEY,
			habit_id        TEXT NOT NULL UNIQUE REFERENCES habits(id) ON DELETE CASCADE,
			species         TEXT NOT NULL,
			growth_stage    INTEGER NOT NULL DEFAULT 0,
			stage_name      TEXT NOT NULL DEFAULT '',
			glow_level      INTEGER NOT NULL DEFAULT 1,
			growth_points   INTEGER NOT NULL DEFAULT 0,
			is_wilted       BOOLEAN NOT NULL DEFAULT FALSE,
			last_evolved_at BIGINT,
			created_at      BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS moonlight_accounts (
			user_id               TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance               BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			last_daily_bonus_date TEXT,
			updated_at            BIGINT NOT NULL
		)`,

		// Append-only journal; seq orders entries per user.
		`CREATE TABLE IF NOT EXISTS moonlight_ledger (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			seq           BIGINT NOT NULL,
			ts            BIGINT NOT NULL,
			kind          TEXT NOT NULL,
			amount        BIGINT NOT NULL,
			reason        TEXT NOT NULL DEFAULT '',
			balance_after BIGINT NOT NULL,
			UNIQUE (user_id, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS artifact_definitions (
			id               TEXT PRIMARY KEY,
			code             TEXT NOT NULL UNIQUE,
			name             TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			kind             TEXT NOT NULL DEFAULT '',
			rarity           TEXT NOT NULL,
			unlock_condition TEXT NOT NULL DEFAULT 'none',
			created_at       BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_artifacts (
			id                     TEXT PRIMARY KEY,
			user_id                TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			artifact_definition_id TEXT NOT NULL REFERENCES artifact_definitions(id),
			acquired_at            BIGINT NOT NULL,
			is_favorite            BOOLEAN NOT NULL DEFAULT FALSE,
			is_displayed           BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (user_id, artifact_definition_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_artifacts_user ON user_artifacts(user_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
