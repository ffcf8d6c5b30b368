package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// ─── Artifact Catalog ───────────────────────────────────────────────────────

// ListArtifactDefinitions returns the catalog in its stable draw order.
func (t *tx) ListArtifactDefinitions(ctx context.Context) ([]domain.ArtifactDefinition, error) {
	rows, err := t.query(ctx,
		`SELECT id, code, name, description, kind, rarity, unlock_condition, created_at
		 FROM artifact_definitions ORDER BY created_at, code`)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []domain.ArtifactDefinition
	for rows.Next() {
		var d domain.ArtifactDefinition
		var rarity, cond string
		var created int64
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.Description, &d.Kind, &rarity, &cond, &created); err != nil {
			return nil, fmt.Errorf("list definitions: %w", err)
		}
		d.Rarity = domain.Rarity(rarity)
		d.UnlockCondition = domain.UnlockCondition(cond)
		d.CreatedAt = time.Unix(created, 0)
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

// UpsertArtifactDefinition inserts a definition or refreshes the one with
// the same code. The stored id of an existing code is kept.
func (t *tx) UpsertArtifactDefinition(ctx context.Context, d domain.ArtifactDefinition) error {
	_, err := t.exec(ctx,
		`INSERT INTO artifact_definitions (id, code, name, description, kind, rarity, unlock_condition, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
			name=excluded.name,
			description=excluded.description,
			kind=excluded.kind,
			rarity=excluded.rarity,
			unlock_condition=excluded.unlock_condition`,
		d.ID, d.Code, d.Name, d.Description, d.Kind, string(d.Rarity), string(d.UnlockCondition), d.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert definition %s: %w", d.Code, err)
	}
	return nil
}

// ─── User Artifacts ─────────────────────────────────────────────────────────

const userArtifactColumns = `id, user_id, artifact_definition_id, acquired_at, is_favorite, is_displayed`

func (t *tx) OwnedDefinitionIDs(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := t.query(ctx,
		`SELECT artifact_definition_id FROM user_artifacts WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("owned artifacts: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("owned artifacts: %w", err)
		}
		owned[id] = true
	}
	return owned, rows.Err()
}

func (t *tx) GetUserArtifactByDefinition(ctx context.Context, userID, definitionID string) (*domain.UserArtifact, error) {
	ua, err := scanUserArtifact(t.queryRow(ctx,
		`SELECT `+userArtifactColumns+` FROM user_artifacts
		 WHERE user_id = ? AND artifact_definition_id = ?`+t.d.forUpdate, userID, definitionID))
	if err != nil {
		return nil, fmt.Errorf("get user artifact: %w", err)
	}
	return ua, nil
}

func (t *tx) GetUserArtifact(ctx context.Context, id string) (*domain.UserArtifact, error) {
	ua, err := scanUserArtifact(t.queryRow(ctx,
		`SELECT `+userArtifactColumns+` FROM user_artifacts WHERE id = ?`+t.d.forUpdate, id))
	if err != nil {
		return nil, fmt.Errorf("get user artifact: %w", err)
	}
	return ua, nil
}

func (t *tx) SaveUserArtifact(ctx context.Context, ua domain.UserArtifact) error {
	_, err := t.exec(ctx,
		`INSERT INTO user_artifacts (`+userArtifactColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			is_favorite=excluded.is_favorite,
			is_displayed=excluded.is_displayed`,
		ua.ID, ua.UserID, ua.DefinitionID, ua.AcquiredAt.Unix(), ua.Favorite, ua.Displayed,
	)
	if err != nil {
		return fmt.Errorf("save user artifact: %w", err)
	}
	return nil
}

func (t *tx) ListUserArtifacts(ctx context.Context, userID string) ([]domain.UserArtifact, error) {
	rows, err := t.query(ctx,
		`SELECT `+userArtifactColumns+` FROM user_artifacts
		 WHERE user_id = ? ORDER BY acquired_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user artifacts: %w", err)
	}
	defer rows.Close()

	var out []domain.UserArtifact
	for rows.Next() {
		ua, err := scanUserArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("list user artifacts: %w", err)
		}
		out = append(out, *ua)
	}
	return out, rows.Err()
}

func scanUserArtifact(s scanner) (*domain.UserArtifact, error) {
	var ua domain.UserArtifact
	var acquired int64
	err := s.Scan(&ua.ID, &ua.UserID, &ua.DefinitionID, &acquired, &ua.Favorite, &ua.Displayed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ua.AcquiredAt = time.Unix(acquired, 0)
	return &ua, nil
}
