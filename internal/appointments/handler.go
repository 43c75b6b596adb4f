package appointments

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/audit"
	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/internal/schedule"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/internal/viewstate"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// StateStore persists per-user screen state between requests.
type StateStore interface {
	Get(ctx context.Context, userID string, screen viewstate.Screen, dst any) (bool, error)
	Put(ctx context.Context, userID string, screen viewstate.Screen, value any) error
}

// AuditTrail reads the recorded mutations for one appointment.
type AuditTrail interface {
	ListForAppointment(ctx context.Context, appointmentID int64, doctorID, limit int) ([]audit.Event, error)
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Fetcher      Fetcher
	Orchestrator *Orchestrator
	States       StateStore
	Audit        AuditTrail
	Location     *time.Location
	Clock        func() time.Time
	Logger       *logging.Logger
}

// Handler serves the appointment screens. Each request builds its own
// ViewModel; nothing is shared between requests except persisted screen state.
type Handler struct {
	fetcher      Fetcher
	orchestrator *Orchestrator
	states       StateStore
	audit        AuditTrail
	loc          *time.Location
	clock        func() time.Time
	logger       *logging.Logger
}

// NewHandler creates an appointments HTTP handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Handler{
		fetcher:      cfg.Fetcher,
		orchestrator: cfg.Orchestrator,
		states:       cfg.States,
		audit:        cfg.Audit,
		loc:          loc,
		clock:        clock,
		logger:       logger,
	}
}

// RegisterRoutes mounts appointment endpoints. Expected under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/appointments", h.list)
	r.Post("/appointments", h.schedule)
	r.Post("/appointments/week/next", h.nextWeek)
	r.Post("/appointments/week/prev", h.prevWeek)
	r.Put("/appointments/{appointmentID}", h.reschedule)
	r.Post("/appointments/{appointmentID}/cancel", h.cancel)
	r.Get("/appointments/{appointmentID}/history", h.history)
	r.Get("/availability/slots", h.slots)
}

// Listing is the derived appointment screen.
type Listing struct {
	Appointments []Appointment   `json:"appointments"`
	Count        int             `json:"count"`
	Filter       schedule.Bucket `json:"filter"`
	Search       string          `json:"search"`
	WeekStart    string          `json:"week_start"`
	WeekEnd      string          `json:"week_end"`
	LoadState    LoadState       `json:"load_state"`
	Error        string          `json:"error,omitempty"`
}

func (h *Handler) newViewModel(ctx context.Context, scope tenancy.Scope, now time.Time) *ViewModel {
	vm := NewViewModel(ViewModelConfig{
		Fetcher:  h.fetcher,
		Scope:    scope,
		Location: h.loc,
		Now:      now,
		Logger:   h.logger,
	})
	if h.states == nil {
		return vm
	}
	var saved ScreenState
	found, err := h.states.Get(ctx, scope.UserID, viewstate.ScreenAppointments, &saved)
	if err != nil {
		h.logger.Warn("appointments: load screen state", "user_id", scope.UserID, "error", err)
		return vm
	}
	if found {
		if err := vm.Restore(saved); err != nil {
			h.logger.Warn("appointments: discard invalid screen state", "user_id", scope.UserID, "error", err)
		}
	}
	return vm
}

func (h *Handler) saveState(ctx context.Context, scope tenancy.Scope, vm *ViewModel) {
	if h.states == nil {
		return
	}
	if err := h.states.Put(ctx, scope.UserID, viewstate.ScreenAppointments, vm.Snapshot()); err != nil {
		h.logger.Warn("appointments: save screen state", "user_id", scope.UserID, "error", err)
	}
}

func (h *Handler) listing(vm *ViewModel, now time.Time) Listing {
	state, loadErr := vm.State()
	start, end := vm.WeekWindow()
	derived := vm.Derive(now)
	out := Listing{
		Appointments: derived,
		Count:        len(derived),
		Filter:       vm.Filter(),
		Search:       vm.Search(),
		WeekStart:    start.Format(time.DateOnly),
		WeekEnd:      end.Format(time.DateOnly),
		LoadState:    state,
	}
	if state == LoadFailed {
		out.Error = apperrors.UserMessage(loadErr, "Failed to load appointments")
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	now := h.clock()
	vm := h.newViewModel(r.Context(), scope, now)

	query := r.URL.Query()
	if query.Has("filter") {
		bucket, err := schedule.ParseBucket(query.Get("filter"))
		if err != nil {
			handlers.WriteError(w, h.logger, err, "")
			return
		}
		vm.SetFilter(bucket)
	}
	if query.Has("search") {
		vm.SetSearch(query.Get("search"))
	}
	h.saveState(r.Context(), scope, vm)

	status := http.StatusOK
	if err := vm.Refresh(r.Context()); err != nil {
		status = http.StatusBadGateway
	}
	handlers.WriteJSON(w, status, h.listing(vm, now))
}

func (h *Handler) nextWeek(w http.ResponseWriter, r *http.Request) {
	h.shiftWeek(w, r, (*ViewModel).NextWeek)
}

func (h *Handler) prevWeek(w http.ResponseWriter, r *http.Request) {
	h.shiftWeek(w, r, (*ViewModel).PrevWeek)
}

// shiftWeek moves the persisted week window without fetching.
func (h *Handler) shiftWeek(w http.ResponseWriter, r *http.Request, move func(*ViewModel)) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	vm := h.newViewModel(r.Context(), scope, h.clock())
	move(vm)
	h.saveState(r.Context(), scope, vm)

	start, end := vm.WeekWindow()
	snapshot := vm.Snapshot()
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"filter":     snapshot.Filter,
		"search":     snapshot.Search,
		"week_start": start.Format(time.DateOnly),
		"week_end":   end.Format(time.DateOnly),
	})
}

func (h *Handler) slots(w http.ResponseWriter, r *http.Request) {
	if _, ok := handlers.RequireScope(w, r); !ok {
		return
	}
	clinicID, err := handlers.IntQuery(r, "clinic_id")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	doctorID, err := handlers.IntQuery(r, "doctor_id")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	slots, err := h.orchestrator.AvailableSlots(r.Context(), clinicID, doctorID, date, h.clock())
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to load available slots")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"slots": slots,
	})
}

// mutationResponse carries the mutation feedback and, when the follow-up
// refresh succeeded, the updated screen.
type mutationResponse struct {
	Result
	Listing *Listing `json:"listing,omitempty"`
}

func (h *Handler) respondMutation(w http.ResponseWriter, status int, vm *ViewModel, now time.Time, res Result) {
	resp := mutationResponse{Result: res}
	if res.Refreshed {
		listing := h.listing(vm, now)
		resp.Listing = &listing
	}
	handlers.WriteJSON(w, status, resp)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	var in ScheduleInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	applyDoctorScope(scope, &in.ClinicID, &in.DoctorID)

	now := h.clock()
	vm := h.newViewModel(r.Context(), scope, now)
	res, err := h.orchestrator.WithRefresher(vm).Schedule(r.Context(), in)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to schedule appointment")
		return
	}
	h.respondMutation(w, http.StatusCreated, vm, now, res)
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	appointmentID, ok := handlers.IntParam(r, "appointmentID")
	if !ok {
		handlers.JSONError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var in RescheduleInput
	if err := handlers.DecodeJSON(r, &in); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	in.AppointmentID = appointmentID
	applyDoctorScope(scope, &in.ClinicID, &in.DoctorID)

	now := h.clock()
	vm := h.newViewModel(r.Context(), scope, now)
	res, err := h.orchestrator.WithRefresher(vm).Reschedule(r.Context(), in)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to reschedule appointment")
		return
	}
	h.respondMutation(w, http.StatusOK, vm, now, res)
}

type cancelBody struct {
	CancelInput
	Confirm bool `json:"confirm"`
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	appointmentID, ok := handlers.IntParam(r, "appointmentID")
	if !ok {
		handlers.JSONError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	var body cancelBody
	if err := handlers.DecodeJSON(r, &body); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	body.AppointmentID = appointmentID
	applyDoctorScope(scope, &body.ClinicID, &body.DoctorID)

	now := h.clock()
	vm := h.newViewModel(r.Context(), scope, now)
	res, err := h.orchestrator.WithRefresher(vm).Cancel(r.Context(), body.CancelInput, Confirmed(body.Confirm))
	if errors.Is(err, ErrCancelNotConfirmed) {
		handlers.JSONError(w, "Please confirm the cancellation", http.StatusConflict)
		return
	}
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to cancel appointment")
		return
	}
	h.respondMutation(w, http.StatusOK, vm, now, res)
}

// history lists the console mutations recorded for one appointment. Doctors
// only see events issued under their own doctor id.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	appointmentID, ok := handlers.IntParam(r, "appointmentID")
	if !ok {
		handlers.JSONError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}
	limit, err := handlers.IntQuery(r, "limit")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}

	events := []audit.Event{}
	if h.audit != nil {
		doctorID := 0
		if scope.Role == tenancy.RoleDoctor {
			doctorID = scope.DoctorID
		}
		listed, err := h.audit.ListForAppointment(r.Context(), int64(appointmentID), doctorID, limit)
		if err != nil {
			handlers.WriteError(w, h.logger, err, "")
			return
		}
		events = append(events, listed...)
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"appointment_id": appointmentID,
		"events":         events,
	})
}

// applyDoctorScope pins a doctor's mutations to their own clinic and doctor id.
func applyDoctorScope(scope tenancy.Scope, clinicID, doctorID *int) {
	if scope.Role != tenancy.RoleDoctor {
		return
	}
	*clinicID = scope.ClinicID
	*doctorID = scope.DoctorID
}
