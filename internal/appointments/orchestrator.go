package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/audit"
	"github.com/wolfman30/clinic-console/internal/availability"
	"github.com/wolfman30/clinic-console/internal/observability/metrics"
	"github.com/wolfman30/clinic-console/internal/schedule"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

var tracer = otel.Tracer("clinic.internal.appointments")

// ErrCancelNotConfirmed is returned when a cancel was not confirmed by the user.
var ErrCancelNotConfirmed = errors.New("appointments: cancel not confirmed")

const (
	opSchedule   = "schedule"
	opReschedule = "reschedule"
	opCancel     = "cancel"
)

// Refresher reloads a view after a successful mutation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Auditor records mutation outcomes.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
}

// Confirmer is the yes/no gate in front of a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, appointmentID int) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, appointmentID int) bool

func (f ConfirmFunc) Confirm(ctx context.Context, appointmentID int) bool {
	return f(ctx, appointmentID)
}

// Confirmed returns a Confirmer with a fixed answer.
func Confirmed(answer bool) Confirmer {
	return ConfirmFunc(func(context.Context, int) bool { return answer })
}

// ScheduleInput is what the schedule form submits. Slot is a 12-hour label.
type ScheduleInput struct {
	ClinicID  int    `json:"clinic_id"`
	DoctorID  int    `json:"doctor_id"`
	PatientID int    `json:"patient_id"`
	Date      string `json:"date"`
	Slot      string `json:"slot"`
	Phone     string `json:"phone"`
}

// RescheduleInput is what the reschedule form submits.
type RescheduleInput struct {
	AppointmentID int    `json:"appointment_id"`
	ClinicID      int    `json:"clinic_id"`
	DoctorID      int    `json:"doctor_id"`
	PatientID     int    `json:"patient_id"`
	Date          string `json:"date"`
	Slot          string `json:"slot"`
	Phone         string `json:"phone"`
}

// CancelInput identifies the appointment to cancel.
type CancelInput struct {
	AppointmentID int    `json:"appointment_id"`
	ClinicID      int    `json:"clinic_id"`
	DoctorID      int    `json:"doctor_id"`
	PatientID     int    `json:"patient_id"`
	Phone         string `json:"phone"`
}

// Result is the success feedback of a mutation. Refreshed is false when the
// mutation succeeded but the follow-up reload failed.
type Result struct {
	Message   string `json:"message"`
	Refreshed bool   `json:"refreshed"`
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Backend      Mutator
	Availability availability.Source
	Resolver     *availability.Resolver
	Auditor      Auditor
	Metrics      *metrics.ConsoleMetrics
	Logger       *logging.Logger
}

// Orchestrator validates mutations, issues them to the backend and refreshes
// the bound view after success.
type Orchestrator struct {
	backend   Mutator
	source    availability.Source
	resolver  *availability.Resolver
	auditor   Auditor
	metrics   *metrics.ConsoleMetrics
	logger    *logging.Logger
	refresher Refresher
}

// NewOrchestrator creates an Orchestrator without a bound view.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = availability.NewResolver(time.UTC, logger)
	}
	return &Orchestrator{
		backend:  cfg.Backend,
		source:   cfg.Availability,
		resolver: resolver,
		auditor:  cfg.Auditor,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// WithRefresher returns a copy of o that refreshes r after each successful
// mutation.
func (o *Orchestrator) WithRefresher(r Refresher) *Orchestrator {
	clone := *o
	clone.refresher = r
	return &clone
}

// AvailableSlots returns the offerable slot labels for a date.
func (o *Orchestrator) AvailableSlots(ctx context.Context, clinicID, doctorID int, date string, now time.Time) ([]string, error) {
	if o.source == nil {
		return nil, errors.New("appointments: availability source not configured")
	}
	return o.resolver.Slots(ctx, o.source, clinicID, doctorID, date, now)
}

// Schedule books a new appointment.
func (o *Orchestrator) Schedule(ctx context.Context, in ScheduleInput) (Result, error) {
	hhmm, err := o.booking(in.ClinicID, in.DoctorID, in.PatientID, in.Date, in.Slot)
	if err != nil {
		return o.invalid(opSchedule, err)
	}

	ctx, span := tracer.Start(ctx, "appointments.schedule")
	defer span.End()
	span.SetAttributes(
		attribute.Int("clinic.clinic_id", in.ClinicID),
		attribute.Int("clinic.doctor_id", in.DoctorID),
		attribute.String("clinic.date", in.Date),
	)

	err = o.backend.BookAppointment(ctx, BookingRequest{
		ClinicID:  in.ClinicID,
		DoctorID:  in.DoctorID,
		PatientID: in.PatientID,
		Date:      in.Date,
		Time:      hhmm,
		Phone:     strings.TrimSpace(in.Phone),
	})
	return o.finish(ctx, span, mutation{
		op:        opSchedule,
		action:    audit.ActionAppointmentScheduled,
		clinicID:  in.ClinicID,
		doctorID:  in.DoctorID,
		patientID: in.PatientID,
		success:   "Appointment scheduled successfully",
		fallback:  "Failed to schedule appointment",
	}, err)
}

// Reschedule moves an existing appointment to a new date and slot.
func (o *Orchestrator) Reschedule(ctx context.Context, in RescheduleInput) (Result, error) {
	if in.AppointmentID <= 0 {
		return o.invalid(opReschedule, apperrors.Validation("appointment_id", "Please select an appointment"))
	}
	hhmm, err := o.booking(in.ClinicID, in.DoctorID, in.PatientID, in.Date, in.Slot)
	if err != nil {
		return o.invalid(opReschedule, err)
	}

	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.Int("clinic.appointment_id", in.AppointmentID),
		attribute.Int("clinic.doctor_id", in.DoctorID),
		attribute.String("clinic.date", in.Date),
	)

	err = o.backend.RescheduleAppointment(ctx, RescheduleRequest{
		AppointmentID: in.AppointmentID,
		ClinicID:      in.ClinicID,
		DoctorID:      in.DoctorID,
		PatientID:     in.PatientID,
		Date:          in.Date,
		Time:          hhmm,
		Phone:         strings.TrimSpace(in.Phone),
	})
	return o.finish(ctx, span, mutation{
		op:            opReschedule,
		action:        audit.ActionAppointmentRescheduled,
		appointmentID: in.AppointmentID,
		clinicID:      in.ClinicID,
		doctorID:      in.DoctorID,
		patientID:     in.PatientID,
		success:       "Appointment rescheduled successfully",
		fallback:      "Failed to reschedule appointment",
	}, err)
}

// Cancel cancels an appointment once confirm answers yes. Without
// confirmation nothing is sent and ErrCancelNotConfirmed is returned.
func (o *Orchestrator) Cancel(ctx context.Context, in CancelInput, confirm Confirmer) (Result, error) {
	if in.AppointmentID <= 0 {
		return o.invalid(opCancel, apperrors.Validation("appointment_id", "Please select an appointment"))
	}
	if confirm == nil || !confirm.Confirm(ctx, in.AppointmentID) {
		o.metrics.ObserveMutation(opCancel, "unconfirmed")
		return Result{}, ErrCancelNotConfirmed
	}

	ctx, span := tracer.Start(ctx, "appointments.cancel")
	defer span.End()
	span.SetAttributes(attribute.Int("clinic.appointment_id", in.AppointmentID))

	err := o.backend.CancelAppointment(ctx, CancelRequest{
		AppointmentID: in.AppointmentID,
		ClinicID:      in.ClinicID,
		DoctorID:      in.DoctorID,
		PatientID:     in.PatientID,
		Phone:         strings.TrimSpace(in.Phone),
	})
	return o.finish(ctx, span, mutation{
		op:            opCancel,
		action:        audit.ActionAppointmentCancelled,
		appointmentID: in.AppointmentID,
		clinicID:      in.ClinicID,
		doctorID:      in.DoctorID,
		patientID:     in.PatientID,
		success:       "Appointment cancelled successfully",
		fallback:      "Failed to cancel appointment",
	}, err)
}

// slotTime validates the date and slot and converts the slot to HH:mm.
// booking checks the inputs shared by Schedule and Reschedule and returns
// the slot as HH:mm.
func (o *Orchestrator) booking(clinicID, doctorID, patientID int, date, slot string) (string, error) {
	if clinicID <= 0 || doctorID <= 0 {
		return "", apperrors.Validation("doctor_id", "Please select a clinic and doctor")
	}
	if patientID <= 0 {
		return "", apperrors.Validation("patient_id", "Please select a patient")
	}
	return o.slotTime(date, slot)
}

func (o *Orchestrator) slotTime(date, slot string) (string, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(slot) == "" {
		return "", apperrors.Validation("slot", "Please select a date and time slot")
	}
	if _, err := schedule.ParseDate(date, o.resolver.Location()); err != nil {
		return "", apperrors.Validation("date", "Please select a valid date")
	}
	hhmm, err := availability.To24Hour(slot)
	if err != nil {
		return "", apperrors.Validation("slot", "Invalid time slot")
	}
	return hhmm, nil
}

func (o *Orchestrator) invalid(op string, err error) (Result, error) {
	o.metrics.ObserveMutation(op, "invalid")
	return Result{}, err
}

type mutation struct {
	op            string
	action        audit.Action
	appointmentID int
	clinicID      int
	doctorID      int
	patientID     int
	success       string
	fallback      string
}

// finish translates the backend outcome, audits it and, on success only,
// refreshes the bound view exactly once.
func (o *Orchestrator) finish(ctx context.Context, span trace.Span, m mutation, err error) (Result, error) {
	event := audit.Event{
		Action:    m.action,
		ClinicID:  m.clinicID,
		DoctorID:  m.doctorID,
		PatientID: m.patientID,
	}
	if scope, ok := tenancy.ScopeFromContext(ctx); ok {
		event.ActorID = scope.UserID
	}
	if m.appointmentID > 0 {
		event.AppointmentIDs = []int64{int64(m.appointmentID)}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, m.op+" failed")
		opErr := apperrors.NewOperationError(m.op, err, m.fallback)
		o.logger.Error("appointments: mutation failed", "operation", m.op, "appointment_id", m.appointmentID, "error", err)
		o.metrics.ObserveMutation(m.op, "failed")
		event.Outcome = audit.OutcomeFailed
		event.Message = opErr.UserMessage
		o.record(ctx, event)
		return Result{}, opErr
	}

	o.metrics.ObserveMutation(m.op, "success")
	event.Outcome = audit.OutcomeSuccess
	event.Message = m.success
	o.record(ctx, event)

	result := Result{Message: m.success}
	if o.refresher == nil {
		return result, nil
	}
	if err := o.refresher.Refresh(ctx); err != nil {
		o.logger.Warn("appointments: refresh after mutation failed", "operation", m.op, "error", err)
		return result, nil
	}
	result.Refreshed = true
	return result, nil
}

func (o *Orchestrator) record(ctx context.Context, event audit.Event) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Record(ctx, event); err != nil {
		o.logger.Warn("appointments: audit record failed", "action", event.Action, "error", err)
	}
}
