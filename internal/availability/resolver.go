package availability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/schedule"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// Source fetches availability days from the backend.
type Source interface {
	FetchAvailability(ctx context.Context, q Query) ([]Day, error)
}

// Resolver computes offerable slots in the clinic's civil timezone.
type Resolver struct {
	loc    *time.Location
	logger *logging.Logger
}

// NewResolver creates a slot resolver for loc.
func NewResolver(loc *time.Location, logger *logging.Logger) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{loc: loc, logger: logger}
}

// Location returns the civil timezone the resolver works in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve returns the slot labels offered on date: morning then afternoon in
// payload order. When date is today, slots at or before now are dropped.
// Labels that fail to parse are kept.
func (r *Resolver) Resolve(date string, days []Day, now time.Time) []string {
	date = strings.TrimSpace(date)
	day, ok := findDay(date, days)
	if !ok || !day.IsAvailable {
		return []string{}
	}

	slots := make([]string, 0, len(day.TimeSlots.Morning)+len(day.TimeSlots.Afternoon))
	slots = append(slots, day.TimeSlots.Morning...)
	slots = append(slots, day.TimeSlots.Afternoon...)

	if date != schedule.CivilDate(now, r.loc) {
		return slots
	}

	local := now.In(r.loc)
	nowMinutes := local.Hour()*60 + local.Minute()

	offered := slots[:0]
	for _, label := range slots {
		minutes, err := ParseSlotLabel(label)
		if err != nil {
			r.logger.Warn("availability: unparsable slot label kept", "date", date, "label", label, "error", err)
			offered = append(offered, label)
			continue
		}
		if minutes > nowMinutes {
			offered = append(offered, label)
		}
	}
	return offered
}

// Slots fetches a single day's availability and resolves it.
func (r *Resolver) Slots(ctx context.Context, src Source, clinicID, doctorID int, date string, now time.Time) ([]string, error) {
	if clinicID <= 0 || doctorID <= 0 {
		return nil, apperrors.Validation("doctor_id", "Please select a clinic and doctor")
	}
	if _, err := schedule.ParseDate(date, r.loc); err != nil {
		return nil, apperrors.Validation("date", "Please select a valid date")
	}

	days, err := src.FetchAvailability(ctx, Query{
		ClinicID:  clinicID,
		DoctorID:  doctorID,
		StartDate: date,
		EndDate:   date,
	})
	if err != nil {
		return nil, fmt.Errorf("availability: fetch: %w", err)
	}
	return r.Resolve(date, days, now), nil
}

func findDay(date string, days []Day) (Day, bool) {
	for _, d := range days {
		candidate := strings.TrimSpace(d.Date)
		if len(candidate) > len(time.DateOnly) {
			candidate = candidate[:len(time.DateOnly)]
		}
		if candidate == date {
			return d, true
		}
	}
	return Day{}, false
}
