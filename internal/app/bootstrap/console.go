package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-console/internal/api/router"
	"github.com/wolfman30/clinic-console/internal/appointments"
	"github.com/wolfman30/clinic-console/internal/audit"
	"github.com/wolfman30/clinic-console/internal/availability"
	"github.com/wolfman30/clinic-console/internal/backend"
	"github.com/wolfman30/clinic-console/internal/calendar"
	appconfig "github.com/wolfman30/clinic-console/internal/config"
	"github.com/wolfman30/clinic-console/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-console/internal/http/middleware"
	"github.com/wolfman30/clinic-console/internal/mfa"
	"github.com/wolfman30/clinic-console/internal/observability/metrics"
	"github.com/wolfman30/clinic-console/internal/reminders"
	"github.com/wolfman30/clinic-console/internal/viewstate"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

// Options carries what BuildConsole cannot read from config.
type Options struct {
	// Registry receives the console metrics. Nil uses a fresh registry.
	Registry *prometheus.Registry
	// HTTPClient overrides the backend client's transport.
	HTTPClient *http.Client
	// Redis overrides the client built from config.
	Redis *redis.Client
}

// Console is the assembled HTTP service and the resources it owns.
type Console struct {
	Handler http.Handler
	closers []func() error
}

// Close releases pools and clients opened by BuildConsole.
func (c *Console) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BuildConsole wires stores, the backend client and every screen handler
// behind the console router. ctx bounds startup checks and background sweeps.
func BuildConsole(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, opts Options) (*Console, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	console := &Console{}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	consoleMetrics := metrics.NewConsoleMetrics(registry)

	client, err := backend.NewClient(backend.Options{
		BaseURL:    cfg.BackendBaseURL,
		Timeout:    cfg.BackendTimeout,
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
		Metrics:    consoleMetrics,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: backend client: %w", err)
	}

	redisClient := opts.Redis
	if redisClient == nil {
		redisClient = BuildRedisClient(ctx, cfg, logger, true)
		if redisClient != nil {
			console.closers = append(console.closers, redisClient.Close)
		}
	}
	var states *viewstate.Store
	if redisClient != nil {
		states = viewstate.NewStore(redisClient, cfg.ViewStateTTL)
	}

	checks := map[string]handlers.Pinger{"backend": client}
	if states != nil {
		checks["redis"] = states
	}

	var batchStore *reminders.BatchStore
	if pool := BuildPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		batchStore = reminders.NewBatchStore(pool)
		checks["postgres"] = handlers.PingFunc(pool.Ping)
		console.closers = append(console.closers, func() error { pool.Close(); return nil })
	}
	var auditService *audit.Service
	if db := BuildSQLDB(ctx, cfg.DatabaseURL, logger); db != nil {
		auditService = audit.NewService(db)
		console.closers = append(console.closers, db.Close)
	}

	orchestrator := appointments.NewOrchestrator(appointments.OrchestratorConfig{
		Backend:      client,
		Availability: client,
		Resolver:     availability.NewResolver(loc, logger),
		Auditor:      auditService,
		Metrics:      consoleMetrics,
		Logger:       logger,
	})
	appointmentsHandler := appointments.NewHandler(appointments.HandlerConfig{
		Fetcher:      client,
		Orchestrator: orchestrator,
		States:       states,
		Audit:        auditService,
		Location:     loc,
		Logger:       logger,
	})

	selection := reminders.SelectionConfig{
		Backend:    client,
		Auditor:    auditService,
		Metrics:    consoleMetrics,
		Logger:     logger,
		WindowDays: cfg.ReminderWindowDays,
	}
	var batchLister reminders.BatchLister
	if batchStore != nil {
		selection.Batches = batchStore
		batchLister = batchStore
	}
	remindersHandler := reminders.NewHandler(selection, batchLister, logger)

	mfaHandler := mfa.NewHandler(mfa.NewService(client, states, logger), logger)
	calendarService := calendar.NewService(client, states, logger)
	calendarHandler := calendar.NewHandler(calendarService, logger)

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	console.Handler = router.New(&router.Config{
		Logger:             logger,
		JWTSecret:          cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		Health:             handlers.NewHealthHandler(checks),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Appointments:       appointmentsHandler,
		Reminders:          remindersHandler,
		MFA:                mfaHandler,
		Calendar:           calendarHandler,
		CalendarGuard:      calendarService.Guard(),
	})

	logger.Info("console wired",
		"backend", cfg.BackendBaseURL,
		"timezone", loc.String(),
		"view_state", states != nil,
		"reminder_batch_log", batchStore != nil,
		"audit_trail", auditService != nil,
	)
	return console, nil
}
