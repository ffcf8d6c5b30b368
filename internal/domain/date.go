package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dateLayout is the wire and storage form of a LocalDate.
const dateLayout = "2006-01-02"

// LocalDate is a civil calendar date in a user's own timezone.
// It carries no time of day and no location.
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

// NewDate builds a LocalDate, normalizing out-of-range values the way
// time.Date does (e.g. Feb 30 becomes Mar 1 or 2).
func NewDate(year int, month time.Month, day int) LocalDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (LocalDate, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return LocalDate{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// String returns the "YYYY-MM-DD" form.
func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero date.
func (d LocalDate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// JulianDay returns the Julian day number of the date in the proleptic
// Gregorian calendar (Fliegel & Van Flandern integer form).
func (d LocalDate) JulianDay() int {
	a := (14 - int(d.Month)) / 12
	y := d.Year + 4800 - a
	m := int(d.Month) + 12*a - 3
	return d.Day + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

// DaysSince returns the number of calendar days from earlier to d.
// Negative when earlier is after d.
func (d LocalDate) DaysSince(earlier LocalDate) int {
	return d.JulianDay() - earlier.JulianDay()
}

// AddDays returns the date n days after d.
func (d LocalDate) AddDays(n int) LocalDate {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Equal reports whether both dates denote the same day.
func (d LocalDate) Equal(o LocalDate) bool {
	return d == o
}

// Before reports whether d is strictly earlier than o.
func (d LocalDate) Before(o LocalDate) bool {
	return d.JulianDay() < o.JulianDay()
}

// In returns midnight of d in loc.
func (d LocalDate) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (d LocalDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *LocalDate) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer so dates are stored as TEXT.
func (d LocalDate) Value() (driver.Value, error) {
	return d.String(), nil
}
