// Package schedule holds the pure date logic behind the appointment screens:
// timestamp parsing in the clinic's civil timezone, relative-day buckets and
// the upcoming/past ordering. Nothing here reads the wall clock; callers pass
// now and the location explicitly.
package schedule

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
)

// naiveLayouts are civil timestamps without zone information. They are read
// as clinic-local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseAppointmentTime parses a backend appointment timestamp into loc.
//   - RFC3339 with offset or Z: an instant, converted to loc
//   - naive datetime: civil time in loc
func ParseAppointmentTime(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &apperrors.ParseError{Kind: "appointment time", Input: raw}
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	// Offsets without a colon, e.g. "+0000".
	if t, err := time.Parse("2006-01-02T15:04:05Z0700", raw); err == nil {
		return t.In(loc), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &apperrors.ParseError{Kind: "appointment time", Input: raw}
}

// ClinicLocation returns the *time.Location for a clinic timezone string.
// Falls back to UTC if the timezone is invalid or empty.
func ClinicLocation(timezone string) *time.Location {
	if strings.TrimSpace(timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), loc)
	if err != nil {
		return time.Time{}, &apperrors.ParseError{Kind: "date", Input: raw, Err: err}
	}
	return t, nil
}

// CivilDate formats t's calendar date in loc as YYYY-MM-DD.
func CivilDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.DateOnly)
}

// dayNumber counts civil days since the epoch for t's date in loc. Working on
// the date components keeps DST transitions from skewing day arithmetic.
func dayNumber(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// DaysBetween returns the civil-day distance from a to b in loc.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	return dayNumber(b, loc) - dayNumber(a, loc)
}
