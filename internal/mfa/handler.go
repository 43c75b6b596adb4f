package mfa

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// Handler serves the MFA settings screen.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an MFA HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts MFA endpoints. Expected under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/mfa", h.current)
	r.Post("/mfa/setup", h.setup)
	r.Post("/mfa/verify", h.verify)
	r.Post("/mfa/cancel", h.cancel)
	r.Post("/mfa/disable", h.disable)
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	view, err := h.service.Current(r.Context(), scope.UserID)
	h.respond(w, view, err, "Failed to load MFA settings")
}

func (h *Handler) setup(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	view, err := h.service.BeginSetup(r.Context(), scope.UserID)
	h.respond(w, view, err, "Failed to start MFA setup")
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	var req codeRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	view, err := h.service.Verify(r.Context(), scope.UserID, req.Code)
	h.respond(w, view, err, "Invalid verification code")
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	view, err := h.service.Cancel(r.Context(), scope.UserID)
	h.respond(w, view, err, "")
}

func (h *Handler) disable(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	var req codeRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	view, err := h.service.Disable(r.Context(), scope.UserID, req.Code)
	h.respond(w, view, err, "Failed to disable MFA")
}

func (h *Handler) respond(w http.ResponseWriter, view View, err error, fallback string) {
	switch {
	case err == nil:
		handlers.WriteJSON(w, http.StatusOK, view)
	case errors.Is(err, ErrInvalidTransition):
		handlers.WriteJSON(w, http.StatusConflict, map[string]any{
			"error": "This action is not available right now",
			"state": view.State,
		})
	default:
		handlers.WriteError(w, h.logger, err, fallback)
	}
}
