package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.
// All of them are expected outcomes; none is fatal to the process.

var (
	// Check-in errors
	ErrAlreadyCompletedToday = errors.New("habit already completed today")
	ErrTooEarly              = errors.New("too early to check in for this habit")
	ErrOnCooldown            = errors.New("habit is on cooldown")
	ErrHabitInactive         = errors.New("habit is not active")

	// Moonlight errors
	ErrInsufficientMoonlight = errors.New("not enough moonlight")
	ErrInvalidAmount         = errors.New("amount must be positive")

	// Ownership errors
	ErrHabitNotFound    = errors.New("habit not found")
	ErrNotOwnedByUser   = errors.New("entity belongs to another user")
	ErrUserNotFound     = errors.New("user not found")
	ErrArtifactNotFound = errors.New("artifact not found")

	// Discovery errors
	ErrEmptyCatalog = errors.New("no artifacts defined yet")

	// Validation errors
	ErrInvalidHabit     = errors.New("invalid habit")
	ErrInvalidFrequency = errors.New("invalid habit frequency")
	ErrInvalidStages    = errors.New("invalid growth stages")
	ErrInvalidTimezone  = errors.New("unknown timezone")
	ErrInvalidUser      = errors.New("user id is required")
)

// ─── Error Codes ────────────────────────────────────────────────────────────

// Code is a stable, machine-readable name for a domain error.
type Code string

const (
	CodeAlreadyCompletedToday Code = "ALREADY_COMPLETED_TODAY"
	CodeTooEarly              Code = "TOO_EARLY"
	CodeOnCooldown            Code = "ON_COOLDOWN"
	CodeHabitInactive         Code = "HABIT_INACTIVE"
	CodeInsufficientMoonlight Code = "INSUFFICIENT_MOONLIGHT"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeHabitNotFound         Code = "HABIT_NOT_FOUND"
	CodeNotOwnedByUser        Code = "NOT_OWNED_BY_USER"
	CodeUserNotFound          Code = "USER_NOT_FOUND"
	CodeArtifactNotFound      Code = "ARTIFACT_NOT_FOUND"
	CodeEmptyCatalog          Code = "EMPTY_CATALOG"
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeInternal              Code = "INTERNAL"
)

var errorCodes = []struct {
	err  error
	code Code
}{
	{ErrAlreadyCompletedToday, CodeAlreadyCompletedToday},
	{ErrTooEarly, CodeTooEarly},
	{ErrOnCooldown, CodeOnCooldown},
	{ErrHabitInactive, CodeHabitInactive},
	{ErrInsufficientMoonlight, CodeInsufficientMoonlight},
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrHabitNotFound, CodeHabitNotFound},
	{ErrNotOwnedByUser, CodeNotOwnedByUser},
	{ErrUserNotFound, CodeUserNotFound},
	{ErrArtifactNotFound, CodeArtifactNotFound},
	{ErrEmptyCatalog, CodeEmptyCatalog},
	{ErrInvalidHabit, CodeInvalidInput},
	{ErrInvalidFrequency, CodeInvalidInput},
	{ErrInvalidStages, CodeInvalidInput},
	{ErrInvalidTimezone, CodeInvalidInput},
	{ErrInvalidUser, CodeInvalidInput},
}

// ErrorCode maps err (or anything it wraps) to its Code.
// Unknown errors map to CodeInternal; nil maps to "".
func ErrorCode(err error) Code {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
