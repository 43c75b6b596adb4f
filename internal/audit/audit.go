// Package audit keeps an append-only trail of the mutations issued from the
// console: bookings, reschedules, cancellations and reminder batches.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Action names the audited console operation.
type Action string

const (
	ActionAppointmentScheduled   Action = "appointment.scheduled"
	ActionAppointmentRescheduled Action = "appointment.rescheduled"
	ActionAppointmentCancelled   Action = "appointment.cancelled"
	ActionRemindersSent          Action = "reminders.sent"
	ActionReminderSent           Action = "reminder.sent"
)

// Outcome of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// Event is an immutable audit record.
type Event struct {
	ID             string          `json:"id"`
	Action         Action          `json:"action"`
	Outcome        Outcome         `json:"outcome"`
	ActorID        string          `json:"actor_id,omitempty"`
	ClinicID       int             `json:"clinic_id,omitempty"`
	DoctorID       int             `json:"doctor_id,omitempty"`
	PatientID      int             `json:"patient_id,omitempty"`
	AppointmentIDs []int64         `json:"appointment_ids,omitempty"`
	Message        string          `json:"message,omitempty"`
	Details        json.RawMessage `json:"details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Service writes audit events to Postgres.
type Service struct {
	db *sql.DB
}

// NewService creates an audit service. A nil db yields a no-op service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Record inserts an audit event.
func (s *Service) Record(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Outcome == "" {
		event.Outcome = OutcomeSuccess
	}

	query := `
		INSERT INTO console_audit_events (
			id, action, outcome, actor_id, clinic_id, doctor_id, patient_id,
			appointment_ids, message, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		string(event.Outcome),
		nullString(event.ActorID),
		nullInt(event.ClinicID),
		nullInt(event.DoctorID),
		nullInt(event.PatientID),
		pq.Array(event.AppointmentIDs),
		nullString(event.Message),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// ListForAppointment returns the trail for one appointment, newest first.
// A positive doctorID restricts the trail to events issued for that doctor.
func (s *Service) ListForAppointment(ctx context.Context, appointmentID int64, doctorID, limit int) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, action, outcome, actor_id, clinic_id, doctor_id, patient_id,
			appointment_ids, message, details, created_at
		FROM console_audit_events
		WHERE $1 = ANY(appointment_ids)`
	args := []any{appointmentID}
	if doctorID > 0 {
		args = append(args, doctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list for appointment: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                             Event
			action, outcome               string
			actorID, message              sql.NullString
			clinicID, doctorID, patientID sql.NullInt64
			details                       []byte
		)
		if err := rows.Scan(&e.ID, &action, &outcome, &actorID, &clinicID, &doctorID, &patientID,
			pq.Array(&e.AppointmentIDs), &message, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Action = Action(action)
		e.Outcome = Outcome(outcome)
		e.ActorID = actorID.String
		e.Message = message.String
		e.ClinicID = int(clinicID.Int64)
		e.DoctorID = int(doctorID.Int64)
		e.PatientID = int(patientID.Int64)
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v != 0}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
