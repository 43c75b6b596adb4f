// Package appointments derives the appointment screens from backend data and
// coordinates schedule, reschedule and cancel against the clinic backend.
package appointments

import (
	"context"
	"time"

	"github.com/wolfman30/clinic-console/internal/schedule"
	"github.com/wolfman30/clinic-console/internal/tenancy"
)

// Appointment mirrors the backend's appointment record. AppointmentTime is
// kept as the raw ISO-8601 string and parsed against the clinic timezone when
// the list is derived.
type Appointment struct {
	AppointmentID   int    `json:"appointment_id"`
	PatientID       int    `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	DoctorID        int    `json:"doctor_id"`
	DoctorName      string `json:"doctor_name"`
	ClinicID        int    `json:"clinic_id,omitempty"`
	AppointmentTime string `json:"appointment_time"`
	Status          string `json:"status"`
	Duration        *int   `json:"duration,omitempty"`
	CalendarEventID string `json:"calendar_event_id,omitempty"`
	ReasonForVisit  string `json:"reason_for_visit,omitempty"`
	AppointmentNote string `json:"appointment_note,omitempty"`
}

// Common status values. The backend treats status as free text.
const (
	StatusScheduled   = "scheduled"
	StatusConfirmed   = "confirmed"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusPending     = "pending"
	StatusRescheduled = "rescheduled"
	StatusFailed      = "failed"
)

// Instant parses the appointment time in loc.
func (a Appointment) Instant(loc *time.Location) schedule.Instant {
	t, err := schedule.ParseAppointmentTime(a.AppointmentTime, loc)
	if err != nil {
		return schedule.Instant{}
	}
	return schedule.Instant{Time: t, Valid: true}
}

// Fetcher returns the full appointment list for a scope.
type Fetcher interface {
	FetchAppointments(ctx context.Context, scope tenancy.Scope) ([]Appointment, error)
}

// BookingRequest is the backend payload for a new appointment. Time is HH:mm.
type BookingRequest struct {
	ClinicID  int    `json:"clinic_id"`
	DoctorID  int    `json:"doctor_id"`
	PatientID int    `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Phone     string `json:"phone,omitempty"`
}

// RescheduleRequest moves an existing appointment.
type RescheduleRequest struct {
	AppointmentID int    `json:"appointment_id"`
	ClinicID      int    `json:"clinic_id"`
	DoctorID      int    `json:"doctor_id"`
	PatientID     int    `json:"patient_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Phone         string `json:"phone,omitempty"`
}

// CancelRequest cancels an existing appointment.
type CancelRequest struct {
	AppointmentID int    `json:"appointment_id"`
	ClinicID      int    `json:"clinic_id"`
	DoctorID      int    `json:"doctor_id"`
	PatientID     int    `json:"patient_id"`
	Phone         string `json:"phone,omitempty"`
}

// Mutator issues appointment mutations to the backend.
type Mutator interface {
	BookAppointment(ctx context.Context, req BookingRequest) error
	RescheduleAppointment(ctx context.Context, req RescheduleRequest) error
	CancelAppointment(ctx context.Context, req CancelRequest) error
}
