// Package reminders lets staff pick upcoming appointments and send SMS
// reminders in one batch, and keeps a log of the batches sent.
package reminders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Candidate is an appointment in the reminder window.
type Candidate struct {
	AppointmentID   int    `json:"appointment_id"`
	PatientID       int    `json:"patient_id"`
	PatientName     string `json:"patient_name"`
	DoctorName      string `json:"doctor_name,omitempty"`
	AppointmentTime string `json:"appointment_time"`
	PhoneNumber     string `json:"phone_number"`
	DaysUntil       int    `json:"days_until"`
}

// BatchRequest asks the backend to send reminders for the selected appointments.
type BatchRequest struct {
	PatientAppointmentIDs []int `json:"patient_appointment_ids"`
	DoctorID              int   `json:"doctor_id,omitempty"`
}

// BatchResult is the backend's report for a batch. It is passed through
// unchanged.
type BatchResult struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	TotalSelected int             `json:"total_selected"`
	RemindersSent int             `json:"reminders_sent"`
	Failed        int             `json:"failed"`
	Details       json.RawMessage `json:"details,omitempty"`
}

// Rejected reports whether the backend answered with a failure status.
func (r BatchResult) Rejected() bool { return failureStatus(r.Status) }

// SingleResult is the backend's report for one reminder.
type SingleResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Rejected reports whether the backend answered with a failure status.
func (r SingleResult) Rejected() bool { return failureStatus(r.Status) }

func failureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "error", "failed", "failure":
		return true
	}
	return false
}

// Backend is the reminder part of the clinic backend.
type Backend interface {
	FetchUpcomingReminderCandidates(ctx context.Context, doctorID int) ([]Candidate, error)
	SendReminders(ctx context.Context, req BatchRequest) (BatchResult, error)
	SendSingleReminder(ctx context.Context, appointmentID int) (SingleResult, error)
}

// Batch is a logged reminder batch.
type Batch struct {
	ID             uuid.UUID `json:"id"`
	ActorID        string    `json:"actor_id,omitempty"`
	DoctorID       int       `json:"doctor_id,omitempty"`
	AppointmentIDs []int64   `json:"appointment_ids"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	TotalSelected  int       `json:"total_selected"`
	RemindersSent  int       `json:"reminders_sent"`
	Failed         int       `json:"failed"`
	CreatedAt      time.Time `json:"created_at"`
}
