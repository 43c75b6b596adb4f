package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/clinic-console/internal/http/middleware"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// APIPrefix is where the authenticated console API is mounted.
const APIPrefix = "/api/v1"

// RouteRegistrar is implemented by every screen's HTTP handler.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	Health             http.Handler
	MetricsHandler     http.Handler

	Appointments RouteRegistrar
	Reminders    RouteRegistrar
	MFA          RouteRegistrar
	Calendar     RouteRegistrar

	// CalendarGuard blocks the API while calendar onboarding is pending.
	CalendarGuard func(http.Handler) http.Handler
}

// New creates the console's chi router.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Handle("/health", cfg.Health)
		} else {
			public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"status":"ok"}`))
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route(APIPrefix, func(api chi.Router) {
		api.Use(httpmiddleware.ConsoleJWT(cfg.JWTSecret, cfg.Logger))
		if cfg.RateLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		api.Use(narrowScope)

		// MFA and calendar screens stay reachable while onboarding blocks.
		if cfg.MFA != nil {
			cfg.MFA.RegisterRoutes(api)
		}
		if cfg.Calendar != nil {
			cfg.Calendar.RegisterRoutes(api)
		}

		api.Group(func(guarded chi.Router) {
			if cfg.CalendarGuard != nil {
				guarded.Use(cfg.CalendarGuard)
			}
			if cfg.Appointments != nil {
				cfg.Appointments.RegisterRoutes(guarded)
			}
			if cfg.Reminders != nil {
				cfg.Reminders.RegisterRoutes(guarded)
			}
		})
	})

	return r
}
