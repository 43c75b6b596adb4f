// Package handlers holds the JSON response helpers shared by the console's
// HTTP handlers and the public health endpoint.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

const maxBodyBytes = 1 << 20

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, message string, status int) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteError maps err onto a status and a user-facing message. Raw error
// text is logged, never returned.
func WriteError(w http.ResponseWriter, logger *logging.Logger, err error, fallback string) {
	var (
		opErr      *apperrors.OperationError
		backendErr *apperrors.BackendError
		networkErr *apperrors.NetworkError
	)
	switch {
	case apperrors.IsValidation(err):
		JSONError(w, apperrors.UserMessage(err, fallback), http.StatusBadRequest)
	case errors.As(err, &opErr), errors.As(err, &backendErr), errors.As(err, &networkErr):
		if logger != nil {
			logger.Warn("upstream call failed", "error", err)
		}
		JSONError(w, apperrors.UserMessage(err, fallback), http.StatusBadGateway)
	default:
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		JSONError(w, "internal error", http.StatusInternalServerError)
	}
}

// DecodeJSON reads a JSON request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.Validation("body", "Request body is required")
		}
		return apperrors.Validation("body", "Invalid request body")
	}
	return nil
}

// IntParam parses a positive integer chi URL parameter.
func IntParam(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// IntQuery parses an optional positive integer query parameter. Missing
// values return 0.
func IntQuery(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validation(name, "Invalid "+name)
	}
	return v, nil
}

// RequireScope returns the caller's scope or writes 401.
func RequireScope(w http.ResponseWriter, r *http.Request) (tenancy.Scope, bool) {
	scope, ok := tenancy.ScopeFromContext(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return tenancy.Scope{}, false
	}
	return scope, true
}
