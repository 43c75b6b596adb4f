package reminders

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/audit"
	"github.com/wolfman30/clinic-console/internal/observability/metrics"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// BatchRecorder logs sent batches.
type BatchRecorder interface {
	RecordBatch(ctx context.Context, b *Batch) error
}

// Auditor records reminder sends in the audit trail.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
}

// SelectionConfig wires a SelectionModel.
type SelectionConfig struct {
	Backend Backend
	Batches BatchRecorder
	Auditor Auditor
	Metrics *metrics.ConsoleMetrics
	Logger  *logging.Logger
	// WindowDays drops candidates further out than this many days. Zero
	// keeps everything the backend returns.
	WindowDays int
}

// SelectionModel tracks which reminder candidates are selected and submits
// them as one batch.
type SelectionModel struct {
	backend    Backend
	batches    BatchRecorder
	auditor    Auditor
	metrics    *metrics.ConsoleMetrics
	logger     *logging.Logger
	windowDays int

	mu         sync.Mutex
	candidates []Candidate
	selected   map[int]struct{}
}

// NewSelectionModel creates an empty selection model.
func NewSelectionModel(cfg SelectionConfig) *SelectionModel {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &SelectionModel{
		backend:    cfg.Backend,
		batches:    cfg.Batches,
		auditor:    cfg.Auditor,
		metrics:    cfg.Metrics,
		logger:     logger,
		windowDays: cfg.WindowDays,
		selected:   make(map[int]struct{}),
	}
}

// Load replaces the candidate list and drops selections that are no longer
// candidates. doctorID 0 loads every doctor's candidates.
func (m *SelectionModel) Load(ctx context.Context, doctorID int) error {
	list, err := m.backend.FetchUpcomingReminderCandidates(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("reminders: load candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(list))
	for _, c := range list {
		if c.DaysUntil < 0 {
			continue
		}
		if m.windowDays > 0 && c.DaysUntil > m.windowDays {
			continue
		}
		candidates = append(candidates, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = candidates
	known := make(map[int]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.AppointmentID] = struct{}{}
	}
	for id := range m.selected {
		if _, ok := known[id]; !ok {
			delete(m.selected, id)
		}
	}
	return nil
}

// Candidates returns a copy of the loaded candidates.
func (m *SelectionModel) Candidates() []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.candidates)
}

// Toggle flips the selection of one appointment.
func (m *SelectionModel) Toggle(appointmentID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.selected[appointmentID]; ok {
		delete(m.selected, appointmentID)
		return
	}
	m.selected[appointmentID] = struct{}{}
}

// Select adds appointments to the selection.
func (m *SelectionModel) Select(appointmentIDs ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range appointmentIDs {
		if id > 0 {
			m.selected[id] = struct{}{}
		}
	}
}

// ToggleAll clears the selection when every candidate is selected and
// selects every candidate otherwise.
func (m *SelectionModel) ToggleAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.allSelectedLocked() {
		clear(m.selected)
		return
	}
	m.selectAllLocked()
}

// SelectAll selects every candidate.
func (m *SelectionModel) SelectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selectAllLocked()
}

// DeselectAll clears the selection.
func (m *SelectionModel) DeselectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.selected)
}

// IsAllSelected reports whether there are candidates and all are selected.
func (m *SelectionModel) IsAllSelected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allSelectedLocked()
}

// Selected returns the selected appointment ids in ascending order.
func (m *SelectionModel) Selected() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedLocked()
}

func (m *SelectionModel) selectAllLocked() {
	for _, c := range m.candidates {
		m.selected[c.AppointmentID] = struct{}{}
	}
}

func (m *SelectionModel) allSelectedLocked() bool {
	if len(m.candidates) == 0 {
		return false
	}
	for _, c := range m.candidates {
		if _, ok := m.selected[c.AppointmentID]; !ok {
			return false
		}
	}
	return true
}

func (m *SelectionModel) selectedLocked() []int {
	ids := make([]int, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Submit sends reminders for the selection. The backend's report is
// returned unchanged and the selection is cleared only when the backend
// accepted the batch. A failure status in a 2xx report keeps the selection.
func (m *SelectionModel) Submit(ctx context.Context, doctorID int) (BatchResult, error) {
	m.mu.Lock()
	ids := m.selectedLocked()
	m.mu.Unlock()

	if len(ids) == 0 {
		return BatchResult{}, apperrors.Validation("patient_appointment_ids", "Please select at least one appointment")
	}

	result, err := m.backend.SendReminders(ctx, BatchRequest{PatientAppointmentIDs: ids, DoctorID: doctorID})
	event := audit.Event{
		Action:         audit.ActionRemindersSent,
		DoctorID:       doctorID,
		AppointmentIDs: toInt64(ids),
	}
	actorID := actorFromContext(ctx)
	event.ActorID = actorID

	if err != nil {
		opErr := apperrors.NewOperationError("send_reminders", err, "Failed to send reminders")
		m.logger.Error("reminders: batch send failed", "doctor_id", doctorID, "selected", len(ids), "error", err)
		event.Outcome = audit.OutcomeFailed
		event.Message = opErr.UserMessage
		m.record(ctx, event)
		return BatchResult{}, opErr
	}

	m.metrics.ObserveReminderBatch(result.RemindersSent, result.Failed)
	event.Message = result.Message
	if result.Rejected() {
		m.logger.Warn("reminders: batch rejected", "doctor_id", doctorID, "status", result.Status, "message", result.Message, "failed", result.Failed)
		event.Outcome = audit.OutcomeFailed
	} else {
		m.mu.Lock()
		for _, id := range ids {
			delete(m.selected, id)
		}
		m.mu.Unlock()
		m.logger.Info("reminders: batch sent", "doctor_id", doctorID, "total_selected", result.TotalSelected, "reminders_sent", result.RemindersSent, "failed", result.Failed)
		event.Outcome = audit.OutcomeSuccess
	}
	m.record(ctx, event)

	if m.batches != nil {
		batch := &Batch{
			ActorID:        actorID,
			DoctorID:       doctorID,
			AppointmentIDs: toInt64(ids),
			Status:         result.Status,
			Message:        result.Message,
			TotalSelected:  result.TotalSelected,
			RemindersSent:  result.RemindersSent,
			Failed:         result.Failed,
		}
		if err := m.batches.RecordBatch(ctx, batch); err != nil {
			m.logger.Warn("reminders: batch log write failed", "error", err)
		}
	}
	return result, nil
}

// SendSingle sends one reminder immediately.
func (m *SelectionModel) SendSingle(ctx context.Context, appointmentID int) (SingleResult, error) {
	if appointmentID <= 0 {
		return SingleResult{}, apperrors.Validation("appointment_id", "Please select an appointment")
	}

	result, err := m.backend.SendSingleReminder(ctx, appointmentID)
	event := audit.Event{
		Action:         audit.ActionReminderSent,
		ActorID:        actorFromContext(ctx),
		AppointmentIDs: []int64{int64(appointmentID)},
	}
	if err != nil {
		opErr := apperrors.NewOperationError("send_reminder", err, "Failed to send reminder")
		m.logger.Error("reminders: single send failed", "appointment_id", appointmentID, "error", err)
		event.Outcome = audit.OutcomeFailed
		event.Message = opErr.UserMessage
		m.record(ctx, event)
		m.metrics.ObserveReminderBatch(0, 1)
		return SingleResult{}, opErr
	}

	event.Message = result.Message
	if result.Rejected() {
		m.logger.Warn("reminders: single send rejected", "appointment_id", appointmentID, "status", result.Status, "message", result.Message)
		m.metrics.ObserveReminderBatch(0, 1)
		event.Outcome = audit.OutcomeFailed
	} else {
		m.metrics.ObserveReminderBatch(1, 0)
		event.Outcome = audit.OutcomeSuccess
	}
	m.record(ctx, event)
	return result, nil
}

func (m *SelectionModel) record(ctx context.Context, event audit.Event) {
	if m.auditor == nil {
		return
	}
	if err := m.auditor.Record(ctx, event); err != nil {
		m.logger.Warn("reminders: audit record failed", "action", event.Action, "error", err)
	}
}

func actorFromContext(ctx context.Context) string {
	if scope, ok := tenancy.ScopeFromContext(ctx); ok {
		return scope.UserID
	}
	return ""
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
