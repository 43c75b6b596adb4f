package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-console/internal/calendar"
	"github.com/wolfman30/clinic-console/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-console/internal/http/middleware"
	"github.com/wolfman30/clinic-console/internal/tenancy"
	"github.com/wolfman30/clinic-console/internal/viewstate"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

const testSecret = "router-secret"

// stubRoutes registers a single GET route that echoes the caller's scope.
type stubRoutes struct {
	path string
}

func (s stubRoutes) RegisterRoutes(r chi.Router) {
	r.Get(s.path, func(w http.ResponseWriter, r *http.Request) {
		scope, _ := tenancy.ScopeFromContext(r.Context())
		handlers.WriteJSON(w, http.StatusOK, map[string]any{
			"user_id":   scope.UserID,
			"doctor_id": scope.DoctorID,
		})
	})
}

type routerHarness struct {
	handler  http.Handler
	calendar *calendar.Service
}

func newRouterHarness(t *testing.T, limiter *httpmiddleware.RateLimiter) *routerHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := logging.New("error")
	calendarSvc := calendar.NewService(nil, viewstate.NewStore(client, time.Hour), logger)

	cfg := &Config{
		Logger:             logger,
		JWTSecret:          testSecret,
		CORSAllowedOrigins: []string{"https://console.example.com"},
		RateLimiter:        limiter,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Appointments:  stubRoutes{path: "/appointments"},
		Reminders:     stubRoutes{path: "/reminders/candidates"},
		MFA:           stubRoutes{path: "/mfa"},
		Calendar:      stubRoutes{path: "/calendar/accounts"},
		CalendarGuard: calendarSvc.Guard(),
	}
	return &routerHarness{handler: New(cfg), calendar: calendarSvc}
}

func consoleToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	claims["exp"] = time.Now().Add(5 * time.Minute).Unix()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *routerHarness) get(t *testing.T, path, token string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	h := newRouterHarness(t, nil)

	rr := h.get(t, "/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouterMetricsEndpoint(t *testing.T) {
	h := newRouterHarness(t, nil)
	rr := h.get(t, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# metrics")
}

func TestRouterRequiresToken(t *testing.T) {
	h := newRouterHarness(t, nil)
	for _, path := range []string{"/api/v1/appointments", "/api/v1/mfa", "/api/v1/calendar/accounts"} {
		rr := h.get(t, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestRouterAuthenticatedRoute(t *testing.T) {
	h := newRouterHarness(t, nil)
	token := consoleToken(t, jwt.MapClaims{"sub": "admin-1", "role": "admin"})

	rr := h.get(t, "/api/v1/appointments", token, map[string]string{"X-Doctor-Id": "12"})
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "admin-1", body["user_id"])
	assert.EqualValues(t, 12, body["doctor_id"])
}

func TestRouterCalendarGuard(t *testing.T) {
	h := newRouterHarness(t, nil)
	token := consoleToken(t, jwt.MapClaims{"sub": "doc-1", "role": "doctor", "clinic_id": 1, "doctor_id": 2})

	_, err := h.calendar.StartOnboarding(context.Background(), "doc-1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusLocked, h.get(t, "/api/v1/appointments", token, nil).Code)
	assert.Equal(t, http.StatusLocked, h.get(t, "/api/v1/reminders/candidates", token, nil).Code)
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/calendar/accounts", token, nil).Code)
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/mfa", token, nil).Code)

	other := consoleToken(t, jwt.MapClaims{"sub": "admin-2", "role": "admin"})
	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/appointments", other, nil).Code)
}

func TestRouterRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := newRouterHarness(t, httpmiddleware.NewRateLimiter(ctx, 0, 1))
	token := consoleToken(t, jwt.MapClaims{"sub": "admin-1", "role": "admin"})

	assert.Equal(t, http.StatusOK, h.get(t, "/api/v1/mfa", token, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.get(t, "/api/v1/mfa", token, nil).Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newRouterHarness(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://console.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
