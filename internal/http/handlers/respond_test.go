package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

func TestWriteError(t *testing.T) {
	logger := logging.New("error")
	tests := []struct {
		name     string
		err      error
		fallback string
		status   int
		body     string
	}{
		{
			name:   "validation",
			err:    apperrors.Validation("patient_id", "Please select a patient"),
			status: http.StatusBadRequest,
			body:   `{"error":"Please select a patient"}`,
		},
		{
			name:     "backend message wins",
			err:      &apperrors.BackendError{Op: "book", StatusCode: 409, Message: "Slot taken"},
			fallback: "Failed to schedule appointment",
			status:   http.StatusBadGateway,
			body:     `{"error":"Slot taken"}`,
		},
		{
			name:     "network uses fallback",
			err:      &apperrors.NetworkError{Op: "book", Err: errors.New("dial tcp: refused")},
			fallback: "Failed to schedule appointment",
			status:   http.StatusBadGateway,
			body:     `{"error":"Failed to schedule appointment"}`,
		},
		{
			name:     "operation error",
			err:      apperrors.NewOperationError("cancel", &apperrors.BackendError{StatusCode: 500}, "Failed to cancel appointment"),
			fallback: "ignored",
			status:   http.StatusBadGateway,
			body:     `{"error":"Failed to cancel appointment"}`,
		},
		{
			name:   "unknown error hides text",
			err:    errors.New("pq: secret detail"),
			status: http.StatusInternalServerError,
			body:   `{"error":"internal error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, logger, tt.err, tt.fallback)
			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Code string `json:"code"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"123456"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "123456", dst.Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err := DecodeJSON(req, &dst)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Request body is required", apperrors.UserMessage(err, ""))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":`))
	assert.True(t, apperrors.IsValidation(DecodeJSON(req, &dst)))
}

func TestIntParamAndQuery(t *testing.T) {
	r := chi.NewRouter()
	var got int
	var gotOK bool
	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		got, gotOK = IntParam(req, "id")
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.True(t, gotOK)
	assert.Equal(t, 42, got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/abc", nil))
	assert.False(t, gotOK)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/0", nil))
	assert.False(t, gotOK)

	v, err := IntQuery(httptest.NewRequest(http.MethodGet, "/?doctor_id=7", nil), "doctor_id")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = IntQuery(httptest.NewRequest(http.MethodGet, "/", nil), "doctor_id")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = IntQuery(httptest.NewRequest(http.MethodGet, "/?doctor_id=-1", nil), "doctor_id")
	assert.Error(t, err)
}

func TestRequireScope(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := RequireScope(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	want := tenancy.Scope{UserID: "u", Role: tenancy.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(tenancy.WithScope(context.Background(), want))
	rec = httptest.NewRecorder()
	got, ok := RequireScope(rec, req)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
