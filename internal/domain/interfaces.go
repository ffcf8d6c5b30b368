package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Clock provides the current instant. Injected so tests are deterministic.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns the real time.
var SystemClock Clock = ClockFunc(time.Now)

// RandomSource yields uniform floats in [0, 1).
// *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// GardenStore opens units of work over persisted garden state.
// Every mutation made through the GardenTx commits atomically when fn
// returns nil and rolls back otherwise.
type GardenStore interface {
	Update(ctx context.Context, fn func(tx GardenTx) error) error
	View(ctx context.Context, fn func(tx GardenTx) error) error
}

// GardenTx is the storage surface visible inside one unit of work.
// Reads used before a write lock their row where the backend supports it.
type GardenTx interface {
	// Users
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, u User) error

	// Habits (with their plants)
	GetHabit(ctx context.Context, id string) (*Habit, error)
	ListHabits(ctx context.Context, userID string) ([]Habit, error)
	CountActiveHabits(ctx context.Context, userID string) (int, error)
	InsertHabit(ctx context.Context, h Habit) error
	UpdateHabit(ctx context.Context, h Habit) error
	DeleteHabit(ctx context.Context, id string) error

	// Moonlight
	GetAccount(ctx context.Context, userID string) (*MoonlightAccount, error)
	SaveAccount(ctx context.Context, acc MoonlightAccount) error
	AppendLedger(ctx context.Context, entries []LedgerEntry) error
	LedgerEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)

	// Artifacts
	ListArtifactDefinitions(ctx context.Context) ([]ArtifactDefinition, error)
	UpsertArtifactDefinition(ctx context.Context, def ArtifactDefinition) error
	OwnedDefinitionIDs(ctx context.Context, userID string) (map[string]bool, error)
	GetUserArtifactByDefinition(ctx context.Context, userID, definitionID string) (*UserArtifact, error)
	GetUserArtifact(ctx context.Context, id string) (*UserArtifact, error)
	SaveUserArtifact(ctx context.Context, ua UserArtifact) error
	ListUserArtifacts(ctx context.Context, userID string) ([]UserArtifact, error)
}

// PhaseCache is an optional, volatile store of computed moon phases.
// Implementations must tolerate any failure by reporting a miss.
type PhaseCache interface {
	Get(ctx context.Context, key string) (MoonPhaseInfo, bool)
	Set(ctx context.Context, key string, info MoonPhaseInfo)
}
