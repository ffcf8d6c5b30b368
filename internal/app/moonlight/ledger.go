// Package moonlight implements the moonlight ledger.
// A Ledger wraps one loaded account for the length of one unit of work.
// Every balance change is journaled as a LedgerEntry; the balance never
// goes below zero.
package moonlight

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

// DefaultDailyBonus is the pre-multiplier daily bonus.
const DefaultDailyBonus int64 = 20

// Ledger applies earn, spend and bonus operations to one account.
// It never reads habit state. Not safe for concurrent use; the caller
// serializes access per account.
type Ledger struct {
	account domain.MoonlightAccount
	now     time.Time
	entries []domain.LedgerEntry
}

// Open starts a ledger over a copy of acc. now stamps every entry.
func Open(acc domain.MoonlightAccount, now time.Time) *Ledger {
	if acc.Balance < 0 {
		acc.Balance = 0
	}
	return &Ledger{account: acc, now: now}
}

// Balance returns the current balance.
func (l *Ledger) Balance() int64 { return l.account.Balance }

// Account returns the account as it stands after all operations so far.
func (l *Ledger) Account() domain.MoonlightAccount { return l.account }

// Entries returns the journal entries produced so far.
func (l *Ledger) Entries() []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Dirty reports whether any operation changed the account.
func (l *Ledger) Dirty() bool { return len(l.entries) > 0 }

// Earn credits amount. Zero is a no-op; negative amounts are rejected.
func (l *Ledger) Earn(amount int64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("%w: earn %d", domain.ErrInvalidAmount, amount)
	}
	if amount == 0 {
		return nil
	}
	l.apply(domain.EntryEarn, amount, reason)
	return nil
}

// Spend debits amount. Fails with ErrInsufficientMoonlight, leaving the
// balance untouched, when the balance is lower than amount.
func (l *Ledger) Spend(amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: spend %d", domain.ErrInvalidAmount, amount)
	}
	if err := l.CanSpend(amount); err != nil {
		return err
	}
	l.apply(domain.EntrySpend, -amount, reason)
	return nil
}

// CanSpend reports ErrInsufficientMoonlight if amount exceeds the balance.
func (l *Ledger) CanSpend(amount int64) error {
	if l.account.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientMoonlight, l.account.Balance, amount)
	}
	return nil
}

// Adjust applies an externally driven delta. A debit larger than the
// balance clamps the balance to zero instead of failing. Returns the
// delta actually applied.
func (l *Ledger) Adjust(delta int64, reason string) int64 {
	if delta < -l.account.Balance {
		delta = -l.account.Balance
	}
	if delta == 0 {
		return 0
	}
	l.apply(domain.EntryAdjust, delta, reason)
	return delta
}

// DailyBonus is the outcome of a bonus claim.
type DailyBonus struct {
	Applied bool             `json:"applied"`
	Amount  int64            `json:"amount"`
	Date    domain.LocalDate `json:"date"`
	Balance int64            `json:"balance"`
}

// ClaimDailyBonus credits floor(base × multiplier) once per local date.
// A repeat claim for the same date is a no-op with Applied=false.
func (l *Ledger) ClaimDailyBonus(day domain.LocalDate, base int64, multiplier float64) DailyBonus {
	if last := l.account.LastDailyBonusDate; last != nil && last.Equal(day) {
		return DailyBonus{Applied: false, Date: day, Balance: l.account.Balance}
	}

	amount := Scale(base, multiplier)
	d := day
	l.account.LastDailyBonusDate = &d
	if amount > 0 {
		l.apply(domain.EntryBonus, amount, domain.ReasonBonus)
	} else {
		l.account.UpdatedAt = l.now
	}
	return DailyBonus{Applied: true, Amount: amount, Date: day, Balance: l.account.Balance}
}

// Scale returns floor(amount × multiplier), never negative.
func Scale(amount int64, multiplier float64) int64 {
	v := math.Floor(float64(amount) * multiplier)
	if v < 0 {
		return 0
	}
	return int64(v)
}

func (l *Ledger) apply(kind domain.EntryKind, delta int64, reason string) {
	l.account.Balance += delta
	l.account.UpdatedAt = l.now
	l.entries = append(l.entries, domain.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       l.account.UserID,
		Timestamp:    l.now,
		Kind:         kind,
		Amount:       delta,
		Reason:       reason,
		BalanceAfter: l.account.Balance,
	})
}
