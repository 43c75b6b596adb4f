package schedule

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
)

// Bucket is a named time-relative partition used to filter appointments.
type Bucket string

const (
	BucketAll       Bucket = "all"
	BucketYesterday Bucket = "yesterday"
	BucketToday     Bucket = "today"
	BucketTomorrow  Bucket = "tomorrow"
	BucketWeek      Bucket = "week"
)

// ParseBucket maps a filter name to a Bucket. Empty selects all.
func ParseBucket(raw string) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return BucketAll, nil
	case "yesterday":
		return BucketYesterday, nil
	case "today":
		return BucketToday, nil
	case "tomorrow":
		return BucketTomorrow, nil
	case "week", "this-week", "this_week":
		return BucketWeek, nil
	default:
		return "", apperrors.Validation("filter", "Unknown filter "+raw)
	}
}

// WeekStart returns midnight of the Monday on or before t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// RelativeDay reports whether t falls on yesterday, today or tomorrow relative
// to now. A date matches at most one of the three.
func RelativeDay(t, now time.Time, loc *time.Location) (Bucket, bool) {
	switch DaysBetween(now, t, loc) {
	case -1:
		return BucketYesterday, true
	case 0:
		return BucketToday, true
	case 1:
		return BucketTomorrow, true
	default:
		return "", false
	}
}

// InWeekWindow reports whether t's civil date lies in
// [windowStart, windowStart+6 days].
func InWeekWindow(t, windowStart time.Time, loc *time.Location) bool {
	diff := DaysBetween(windowStart, t, loc)
	return diff >= 0 && diff <= 6
}

// Matches reports whether a valid appointment time belongs to bucket b. The
// week bucket uses the calendar week containing now.
func Matches(b Bucket, t, now time.Time, loc *time.Location) bool {
	switch b {
	case BucketAll:
		return true
	case BucketWeek:
		return InWeekWindow(t, WeekStart(now, loc), loc)
	case BucketYesterday, BucketToday, BucketTomorrow:
		rel, ok := RelativeDay(t, now, loc)
		return ok && rel == b
	default:
		return false
	}
}
