package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// tx implements domain.GardenTx over one SQL transaction.
type tx struct {
	tx    *sql.Tx
	d     dialect
	write bool
}

var _ domain.GardenTx = (*tx)(nil)

func (t *tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

func (t *tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.d.rebind(query), args...)
}

func (t *tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.d.rebind(query), args...)
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (t *tx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	var created int64
	err := t.queryRow(ctx,
		`SELECT id, username, timezone, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.Timezone, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0)
	return &u, nil
}

func (t *tx) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := t.exec(ctx,
		`INSERT INTO users (id, username, timezone, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			username=excluded.username,
			timezone=excluded.timezone`,
		u.ID, u.Username, u.Timezone, u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// ─── Habits ─────────────────────────────────────────────────────────────────

const habitColumns = `h.id, h.user_id, h.name, h.description, h.is_active, h.initial_progress_days,
	h.frequency_type, h.frequency_value, h.current_streak, h.best_streak,
	h.last_checkin_date, h.last_checkin_at, h.cooldown_hours, h.is_wilted, h.last_wilted_at,
	h.created_at, h.updated_at,
	p.id, p.species, p.growth_stage, p.stage_name, p.glow_level, p.growth_points,
	p.is_wilted, p.last_evolved_at, p.created_at`

func (t *tx) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	// Row lock on habits only: PostgreSQL rejects FOR UPDATE on the
	// nullable side of an outer join.
	q := `SELECT ` + habitColumns + `
		FROM habits h LEFT JOIN plants p ON p.habit_id = h.id
		WHERE h.id = ?`
	if t.d.forUpdate != "" {
		q += t.d.forUpdate + " OF h"
	}
	h, err := scanHabit(t.queryRow(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

func (t *tx) ListHabits(ctx context.Context, userID string) ([]domain.Habit, error) {
	rows, err := t.query(ctx,
		`SELECT `+habitColumns+`
		 FROM habits h LEFT JOIN plants p ON p.habit_id = h.id
		 WHERE h.user_id = ? ORDER BY h.created_at, h.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("list habits: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (t *tx) CountActiveHabits(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.queryRow(ctx,
		`SELECT COUNT(*) FROM habits WHERE user_id = ? AND is_active = ?`, userID, true,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count habits: %w", err)
	}
	return n, nil
}

func (t *tx) InsertHabit(ctx context.Context, h domain.Habit) error {
	_, err := t.exec(ctx,
		`INSERT INTO habits (id, user_id, name, description, is_active, initial_progress_days,
			frequency_type, frequency_value, current_streak, best_streak,
			last_checkin_date, last_checkin_at, cooldown_hours, is_wilted, last_wilted_at,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Description, h.Active, h.InitialProgressDays,
		string(h.FrequencyKind()), h.FrequencyValue(), h.CurrentStreak, h.BestStreak,
		nullableDate(h.LastCheckinDate), nullableUnix(h.LastCheckinAt), h.CooldownHours,
		h.Wilted, nullableUnix(h.LastWiltedAt), h.CreatedAt.Unix(), h.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert habit: %w", err)
	}
	return t.savePlant(ctx, h.ID, h.Plant)
}

func (t *tx) UpdateHabit(ctx context.Context, h domain.Habit) error {
	res, err := t.exec(ctx,
		`UPDATE habits SET name = ?, description = ?, is_active = ?,
			frequency_type = ?, frequency_value = ?, current_streak = ?, best_streak = ?,
			last_checkin_date = ?, last_checkin_at = ?, cooldown_hours = ?,
			is_wilted = ?, last_wilted_at = ?, updated_at = ?
		 WHERE id = ?`,
		h.Name, h.Description, h.Active,
		string(h.FrequencyKind()), h.FrequencyValue(), h.CurrentStreak, h.BestStreak,
		nullableDate(h.LastCheckinDate), nullableUnix(h.LastCheckinAt), h.CooldownHours,
		h.Wilted, nullableUnix(h.LastWiltedAt), h.UpdatedAt.Unix(),
		h.ID,
	)
	if err != nil {
		return fmt.Errorf("update habit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrHabitNotFound
	}
	return t.savePlant(ctx, h.ID, h.Plant)
}

func (t *tx) DeleteHabit(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, `DELETE FROM plants WHERE habit_id = ?`, id); err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}
	res, err := t.exec(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (t *tx) savePlant(ctx context.Context, habitID string, p domain.Plant) error {
	if p.ID == "" {
		return nil
	}
	_, err := t.exec(ctx,
		`INSERT INTO plants (id, habit_id, species, growth_stage, stage_name, glow_level,
			growth_points, is_wilted, last_evolved_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			growth_stage=excluded.growth_stage,
			stage_name=excluded.stage_name,
			glow_level=excluded.glow_level,
			growth_points=excluded.growth_points,
			is_wilted=excluded.is_wilted,
			last_evolved_at=excluded.last_evolved_at`,
		p.ID, habitID, p.Species, p.GrowthStage, p.StageName, p.GlowLevel,
		p.GrowthPoints, p.Wilted, nullableUnix(p.LastEvolvedAt), p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save plant: %w", err)
	}
	return nil
}

func scanHabit(s scanner) (*domain.Habit, error) {
	var h domain.Habit
	var (
		freqKind                    string
		freqValue                   int
		lastDate                    sql.NullString
		lastAt, wiltedAt            sql.NullInt64
		created, updated            int64
		plantID, species, stageName sql.NullString
		stage, glow, points         sql.NullInt64
		plantWilted                 sql.NullBool
		evolvedAt, plantCreated     sql.NullInt64
	)
	err := s.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &h.Active, &h.InitialProgressDays,
		&freqKind, &freqValue, &h.CurrentStreak, &h.BestStreak,
		&lastDate, &lastAt, &h.CooldownHours, &h.Wilted, &wiltedAt,
		&created, &updated,
		&plantID, &species, &stage, &stageName, &glow, &points,
		&plantWilted, &evolvedAt, &plantCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	h.Frequency, err = domain.MakeFrequency(domain.FrequencyKind(freqKind), freqValue)
	if err != nil {
		return nil, err
	}
	if h.LastCheckinDate, err = parseNullDate(lastDate); err != nil {
		return nil, err
	}
	h.LastCheckinAt = fromNullUnix(lastAt)
	h.LastWiltedAt = fromNullUnix(wiltedAt)
	h.CreatedAt = time.Unix(created, 0)
	h.UpdatedAt = time.Unix(updated, 0)

	if plantID.Valid {
		h.Plant = domain.Plant{
			ID:            plantID.String,
			HabitID:       h.ID,
			Species:       species.String,
			GrowthStage:   int(stage.Int64),
			StageName:     stageName.String,
			GlowLevel:     int(glow.Int64),
			GrowthPoints:  int(points.Int64),
			Wilted:        plantWilted.Bool,
			LastEvolvedAt: fromNullUnix(evolvedAt),
			CreatedAt:     fromNullUnix(plantCreated),
		}
	}
	return &h, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(n.Int64, 0)
}

func nullableDate(d *domain.LocalDate) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (*domain.LocalDate, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
