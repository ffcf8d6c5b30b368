package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// ─── Moonlight Accounts ─────────────────────────────────────────────────────

// GetAccount returns nil when the user has no account yet. In a write
// transaction a missing row is provisioned first, so the row lock holds
// against other processes until commit.
func (t *tx) GetAccount(ctx context.Context, userID string) (*domain.MoonlightAccount, error) {
	if t.write {
		created, err := t.provisionAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		if created {
			return nil, nil
		}
	}

	var acc domain.MoonlightAccount
	var bonusDate sql.NullString
	var updated int64
	err := t.queryRow(ctx,
		`SELECT user_id, balance, last_daily_bonus_date, updated_at
		 FROM moonlight_accounts WHERE user_id = ?`+t.d.forUpdate, userID,
	).Scan(&acc.UserID, &acc.Balance, &bonusDate, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if acc.LastDailyBonusDate, err = parseNullDate(bonusDate); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	acc.UpdatedAt = time.Unix(updated, 0)
	return &acc, nil
}

// provisionAccount inserts an empty account row for an existing user.
// Reports whether this call created it.
func (t *tx) provisionAccount(ctx context.Context, userID string) (bool, error) {
	res, err := t.exec(ctx,
		`INSERT INTO moonlight_accounts (user_id, balance, updated_at)
		 SELECT ?, 0, ? WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, time.Now().Unix(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("provision account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("provision account: %w", err)
	}
	return n > 0, nil
}

func (t *tx) SaveAccount(ctx context.Context, acc domain.MoonlightAccount) error {
	_, err := t.exec(ctx,
		`INSERT INTO moonlight_accounts (user_id, balance, last_daily_bonus_date, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			balance=excluded.balance,
			last_daily_bonus_date=excluded.last_daily_bonus_date,
			updated_at=excluded.updated_at`,
		acc.UserID, acc.Balance, nullableDate(acc.LastDailyBonusDate), acc.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// AppendLedger journals entries after the user's latest sequence number.
func (t *tx) AppendLedger(ctx context.Context, entries []domain.LedgerEntry) error {
	seqs := make(map[string]int64)
	for _, e := range entries {
		seq, ok := seqs[e.UserID]
		if !ok {
			if err := t.queryRow(ctx,
				`SELECT COALESCE(MAX(seq), 0) FROM moonlight_ledger WHERE user_id = ?`, e.UserID,
			).Scan(&seq); err != nil {
				return fmt.Errorf("ledger seq: %w", err)
			}
		}
		seq++
		seqs[e.UserID] = seq

		_, err := t.exec(ctx,
			`INSERT INTO moonlight_ledger (id, user_id, seq, ts, kind, amount, reason, balance_after)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.UserID, seq, e.Timestamp.Unix(), string(e.Kind), e.Amount, e.Reason, e.BalanceAfter,
		)
		if err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
	}
	return nil
}

// LedgerEntries returns the newest entries first. limit <= 0 returns all.
func (t *tx) LedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	q := `SELECT id, user_id, ts, kind, amount, reason, balance_after
		FROM moonlight_ledger WHERE user_id = ? ORDER BY seq DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := t.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		var kind string
		if err := rows.Scan(&e.ID, &e.UserID, &ts, &kind, &e.Amount, &e.Reason, &e.BalanceAfter); err != nil {
			return nil, fmt.Errorf("ledger entries: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Kind = domain.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
