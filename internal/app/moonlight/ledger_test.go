package moonlight

import (
	"errors"
	"testing"
	"time"

	"github.com/moonlit-garden/moonlit/internal/domain"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func openLedger(balance int64) *Ledger {
	return Open(domain.MoonlightAccount{UserID: "u1", Balance: balance}, testNow)
}

// ─── Earn / Spend ───────────────────────────────────────────────────────────

func TestLedger_Earn(t *testing.T) {
	l := openLedger(0)
	if err := l.Earn(50, domain.ReasonCheckin); err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if l.Balance() != 50 {
		t.Errorf("balance after earn = %d, want 50", l.Balance())
	}
	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != domain.EntryEarn || e.Amount != 50 || e.BalanceAfter != 50 || e.UserID != "u1" {
		t.Errorf("entry = %+v", e)
	}
	if !e.Timestamp.Equal(testNow) {
		t.Errorf("entry timestamp = %v", e.Timestamp)
	}
}

func TestLedger_EarnZeroAndNegative(t *testing.T) {
	l := openLedger(5)
	if err := l.Earn(0, "zero"); err != nil {
		t.Errorf("Earn(0) error: %v", err)
	}
	if l.Dirty() {
		t.Error("Earn(0) should not journal")
	}
	if err := l.Earn(-5, "neg"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Earn(-5) err = %v, want ErrInvalidAmount", err)
	}
	if l.Balance() != 5 {
		t.Errorf("balance = %d, want 5", l.Balance())
	}
}

func TestLedger_SpendToZeroThenInsufficient(t *testing.T) {
	l := openLedger(10)

	if err := l.Spend(10, domain.ReasonDiscovery); err != nil {
		t.Fatalf("Spend(10) error: %v", err)
	}
	if l.Balance() != 0 {
		t.Errorf("balance = %d, want 0", l.Balance())
	}

	err := l.Spend(1, domain.ReasonDiscovery)
	if !errors.Is(err, domain.ErrInsufficientMoonlight) {
		t.Errorf("Spend(1) err = %v, want ErrInsufficientMoonlight", err)
	}
	if l.Balance() != 0 {
		t.Errorf("balance after failed spend = %d, want 0", l.Balance())
	}
	if len(l.Entries()) != 1 {
		t.Errorf("failed spend must not journal, entries = %d", len(l.Entries()))
	}
}

func TestLedger_SpendNonPositive(t *testing.T) {
	l := openLedger(10)
	for _, amt := range []int64{0, -3} {
		if err := l.Spend(amt, "x"); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Errorf("Spend(%d) err = %v, want ErrInvalidAmount", amt, err)
		}
	}
}

func TestLedger_AdjustClampsAtZero(t *testing.T) {
	l := openLedger(7)
	applied := l.Adjust(-20, domain.ReasonManual)
	if applied != -7 {
		t.Errorf("applied = %d, want -7", applied)
	}
	if l.Balance() != 0 {
		t.Errorf("balance = %d, want 0", l.Balance())
	}
	if got := l.Adjust(-1, domain.ReasonManual); got != 0 {
		t.Errorf("adjust on empty balance applied %d", got)
	}
	if got := l.Adjust(4, domain.ReasonManual); got != 4 || l.Balance() != 4 {
		t.Errorf("positive adjust: applied %d balance %d", got, l.Balance())
	}
}

func TestOpen_ClampsNegativeBalance(t *testing.T) {
	l := Open(domain.MoonlightAccount{Balance: -3}, testNow)
	if l.Balance() != 0 {
		t.Errorf("balance = %d, want 0", l.Balance())
	}
}

// ─── Daily Bonus ────────────────────────────────────────────────────────────

func TestLedger_DailyBonusIdempotent(t *testing.T) {
	l := openLedger(100)
	day := domain.NewDate(2025, time.July, 1)

	first := l.ClaimDailyBonus(day, DefaultDailyBonus, 1.3)
	if !first.Applied {
		t.Fatal("first claim should apply")
	}
	if first.Amount != 26 {
		t.Errorf("amount = %d, want floor(20*1.3)=26", first.Amount)
	}
	if l.Balance() != 126 {
		t.Errorf("balance = %d, want 126", l.Balance())
	}

	second := l.ClaimDailyBonus(day, DefaultDailyBonus, 1.3)
	if second.Applied || second.Amount != 0 {
		t.Errorf("second claim = %+v, want not applied", second)
	}
	if l.Balance() != 126 {
		t.Errorf("balance after repeat = %d, want 126", l.Balance())
	}
	if got := l.Account().LastDailyBonusDate; got == nil || !got.Equal(day) {
		t.Errorf("stamped date = %v, want %v", got, day)
	}
	if len(l.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(l.Entries()))
	}
}

func TestLedger_DailyBonusNextDay(t *testing.T) {
	l := openLedger(0)
	day := domain.NewDate(2025, time.July, 1)
	l.ClaimDailyBonus(day, DefaultDailyBonus, 0.9)
	next := l.ClaimDailyBonus(day.AddDays(1), DefaultDailyBonus, 0.9)
	if !next.Applied || next.Amount != 18 {
		t.Errorf("next-day claim = %+v, want applied 18", next)
	}
	if l.Balance() != 36 {
		t.Errorf("balance = %d, want 36", l.Balance())
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		amount int64
		mult   float64
		want   int64
	}{
		{20, 1.3, 26},
		{20, 0.9, 18},
		{5, 1.1, 5},
		{7, 1.3, 9},
		{10, -1, 0},
	}
	for _, tt := range tests {
		if got := Scale(tt.amount, tt.mult); got != tt.want {
			t.Errorf("Scale(%d, %v) = %d, want %d", tt.amount, tt.mult, got, tt.want)
		}
	}
}
