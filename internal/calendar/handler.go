package calendar

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-console/internal/http/handlers"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// Handler serves the calendar connection screen.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a calendar HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts calendar endpoints. Expected under /api/v1.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/calendar/accounts", h.listAccounts)
	r.Post("/calendar/connect", h.connect)
	r.Delete("/calendar/accounts/{accountID}", h.disconnect)
	r.Get("/calendar/onboarding", h.onboarding)
	r.Post("/calendar/onboarding/start", h.startOnboarding)
	r.Post("/calendar/onboarding/complete", h.completeOnboarding)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := handlers.RequireScope(w, r); !ok {
		return
	}
	accounts, err := h.service.Accounts(r.Context())
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to load calendar connections")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]any{
		"accounts":  accounts,
		"connected": HasConnected(accounts),
	})
}

type connectRequest struct {
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirect_uri"`
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	if _, ok := handlers.RequireScope(w, r); !ok {
		return
	}
	var req connectRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	result, err := h.service.Connect(r.Context(), req.Provider, req.RedirectURI)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to connect calendar")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if _, ok := handlers.RequireScope(w, r); !ok {
		return
	}
	if err := h.service.Disconnect(r.Context(), chi.URLParam(r, "accountID")); err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to disconnect calendar")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) onboarding(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	state, err := h.service.Onboarding(r.Context(), scope.UserID)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) startOnboarding(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	state, err := h.service.StartOnboarding(r.Context(), scope.UserID)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, state)
}

func (h *Handler) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	scope, ok := handlers.RequireScope(w, r)
	if !ok {
		return
	}
	state, err := h.service.CompleteOnboarding(r.Context(), scope.UserID)
	if err != nil {
		handlers.WriteError(w, h.logger, err, "Failed to complete calendar setup")
		return
	}
	handlers.WriteJSON(w, http.StatusOK, state)
}
