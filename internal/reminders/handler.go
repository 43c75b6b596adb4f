package reminders

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// BatchLister reads the reminder batch log.
type BatchLister interface {
	ListRecent(ctx context.Context, doctorID, limit int) ([]Batch, error)
}

// Handler provides HTTP endpoints for the reminder screen.
type Handler struct {
	newModel func() *SelectionModel
	batches  BatchLister
	logger   *logging.Logger
}

// NewHandler creates a reminders HTTP handler. cfg is used to build a fresh
// SelectionModel per request.
func NewHandler(cfg SelectionConfig, batches BatchLister, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	return &Handler{
		newModel: func() *SelectionModel { return NewSelectionModel(cfg) },
		batches:  batches,
		logger:   logger,
	}
}

// RegisterRoutes mounts reminder endpoints. Expected under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reminders/candidates", h.listCandidates)
	r.Post("/reminders/send", h.sendBatch)
	r.Post("/reminders/{appointmentID}/send", h.sendSingle)
	r.Get("/reminders/batches", h.listBatches)
}

// doctorFor pins doctors to their own id; admins may pass doctor_id.
func doctorFor(scope tenancy.Scope, requested int) int {
	if scope.Role == tenancy.RoleDoctor {
		return scope.DoctorID
	}
	return requested
}

func (h *Handler) listCandidates(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	requested, err := handlers.IntQuery(r, "doctor_id")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}

	model := h.newModel()
	if err := model.Load(r.Context(), doctorFor(scope, requested)); err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to load upcoming appointments")
		return
	}
	candidates := model.Candidates()
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

type sendBatchRequest struct {
	AppointmentIDs []int `json:"appointment_ids"`
	DoctorID       int   `json:"doctor_id"`
}

func (h *Handler) sendBatch(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	var req sendBatchRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}

	model := h.newModel()
	model.Select(req.AppointmentIDs...)
	result, err := model.Submit(r.Context(), doctorFor(scope, req.DoctorID))
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to send reminders")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) sendSingle(w http.ResponseWriter, r *http.Request) {
	if _, ok := handlers.RequireScope(w, r); !ok {
		return
	}
	appointmentID, ok := handlers.IntParam(r, "appointmentID")
	if !ok {
		handlers.JSONError(w, "invalid appointment id", http.StatusBadRequest)
		return
	}

	result, err := h.newModel().SendSingle(r.Context(), appointmentID)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to send reminder")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	if h.batches == nil {
		handlers.WriteJSON(w, http.StatusOK, map[string]any{"batches": []Batch{}, "count": 0})
		return
	}
	requested, err := handlers.IntQuery(r, "doctor_id")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	limit, err := handlers.IntQuery(r, "limit")
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}

	batches, err := h.batches.ListRecent(r.Context(), doctorFor(scope, requested), limit)
	if err != nil {
		h.logger.Error("reminders handler: list batches", "error", err)
		handlers.JSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []Batch{}
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"batches": batches,
		"count":   len(batches),
	})
}
