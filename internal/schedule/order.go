package schedule

import (
	"slices"
	"time"
)

// Instant is a parsed appointment time. Valid is false when the raw value
// could not be parsed.
type Instant struct {
	Time  time.Time
	Valid bool
}

// Compare orders two appointment instants relative to now:
// valid before invalid, upcoming (strictly after now) before past, upcoming
// ascending, past descending. Two invalid instants compare equal.
func Compare(a, b Instant, now time.Time) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}

	aUpcoming := a.Time.After(now)
	bUpcoming := b.Time.After(now)
	if aUpcoming != bUpcoming {
		if aUpcoming {
			return -1
		}
		return 1
	}

	c := a.Time.Compare(b.Time)
	if aUpcoming {
		return c
	}
	return -c
}

// SortStable orders items in place with Compare. Items with equal keys keep
// their relative order.
func SortStable[T any](items []T, instant func(T) Instant, now time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(instant(a), instant(b), now)
	})
}
