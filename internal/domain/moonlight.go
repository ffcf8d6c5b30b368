package domain

import "time"

// ─── Moonlight ──────────────────────────────────────────────────────────────

// MoonlightAccount is a user's balance of moonlight.
// Balance is never negative. Mutated only through the moonlight ledger.
type MoonlightAccount struct {
	UserID             string     `json:"user_id"`
	Balance            int64      `json:"balance"`
	LastDailyBonusDate *LocalDate `json:"last_daily_bonus_date,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// EntryKind categorizes a ledger entry.
type EntryKind string

const (
	EntryEarn   EntryKind = "EARN"
	EntrySpend  EntryKind = "SPEND"
	EntryBonus  EntryKind = "DAILY_BONUS"
	EntryAdjust EntryKind = "ADJUST"
)

// Reasons recorded on ledger entries.
const (
	ReasonCheckin   = "checkin"
	ReasonCleanse   = "cleanse"
	ReasonDiscovery = "discovery"
	ReasonBonus     = "daily_bonus"
	ReasonManual    = "manual"
)

// LedgerEntry is one balance change in the moonlight journal.
// Amount is signed: positive for credits, negative for debits.
type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         EntryKind `json:"kind"`
	Amount       int64     `json:"amount"`
	Reason       string    `json:"reason,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
}
