package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/tableledger/internal/adapter/http/handler"
	"github.com/iho/tableledger/internal/adapter/http/middleware"
	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/auth"
	"github.com/iho/tableledger/internal/infrastructure/metrics"
	"github.com/iho/tableledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler  *handler.AccountHandler
	EntryHandler    *handler.EntryHandler
	LedgerHandler   *handler.LedgerHandler
	EventHandler    *handler.EventHandler
	SplitHandler    *handler.SplitHandler
	TransferHandler *handler.TransferHandler
	RuleHandler     *handler.RuleHandler
	BoundaryHandler *handler.BoundaryHandler
	BalanceHandler  *handler.BalanceHandler
	HealthHandler   *handler.HealthHandler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration

	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	RateLimiter    *middleware.RateLimiter

	// JWTManager verifies bearer tokens when AuthEnabled is set. Otherwise
	// every API request runs as DefaultPrincipal.
	JWTManager       *auth.JWTManager
	AuthEnabled      bool
	DefaultPrincipal domain.Principal
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled && cfg.JWTManager != nil {
			r.Use(middleware.AuthMiddleware(cfg.JWTManager, cfg.Metrics))
		} else {
			r.Use(middleware.StaticPrincipal(cfg.DefaultPrincipal))
		}

		// Idempotency runs after auth so keys are scoped per principal.
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Post("/seed", cfg.AccountHandler.Seed)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Post("/{id}/activate", cfg.AccountHandler.Activate)
			r.Post("/{id}/deactivate", cfg.AccountHandler.Deactivate)
			r.Get("/{id}/balance", cfg.BalanceHandler.AccountBalance)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Post("/", cfg.EntryHandler.Post)
			r.Get("/", cfg.EntryHandler.List)
			r.Get("/{id}", cfg.EntryHandler.Get)
			r.Post("/{id}/reverse", cfg.EntryHandler.Reverse)
		})

		r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)

		r.Route("/events", func(r chi.Router) {
			r.Post("/", cfg.EventHandler.Ingest)
			r.Get("/", cfg.EventHandler.List)
			r.Get("/{id}", cfg.EventHandler.Get)
			r.Post("/{id}/categorize", cfg.EventHandler.Categorize)
			r.Post("/{id}/reclassify", cfg.EventHandler.Reclassify)
			r.Get("/{id}/reclassifications", cfg.EventHandler.ListReclassifications)
			r.Post("/{id}/exclude", cfg.EventHandler.Exclude)
			r.Post("/{id}/reconcile", cfg.EventHandler.Reconcile)
			r.Post("/{id}/uncategorize", cfg.EventHandler.Uncategorize)
			r.Post("/{id}/split", cfg.SplitHandler.Split)
			r.Get("/{id}/splits", cfg.SplitHandler.List)
			r.Get("/{id}/transfer-candidates", cfg.TransferHandler.Candidates)
		})

		r.Post("/transfers", cfg.TransferHandler.Create)

		r.Route("/rules", func(r chi.Router) {
			r.Post("/", cfg.RuleHandler.Create)
			r.Get("/", cfg.RuleHandler.List)
			r.Post("/evaluate", cfg.RuleHandler.Evaluate)
			r.Post("/apply", cfg.RuleHandler.Apply)
			r.Get("/{id}", cfg.RuleHandler.Get)
			r.Put("/{id}", cfg.RuleHandler.Update)
			r.Post("/{id}/deactivate", cfg.RuleHandler.Deactivate)
		})

		r.Route("/restaurants/{restaurantID}", func(r chi.Router) {
			r.Put("/boundary", cfg.BoundaryHandler.Set)
			r.Get("/boundary", cfg.BoundaryHandler.Get)
			r.Get("/boundary/check", cfg.BoundaryHandler.Check)
			r.Post("/boundary/adjust", cfg.BoundaryHandler.Adjust)
			r.Get("/reconciliation", cfg.BoundaryHandler.Report)
			r.Get("/trial-balance", cfg.BalanceHandler.TrialBalance)
			r.Post("/balances/rebuild", cfg.BalanceHandler.Rebuild)
		})
	})

	return r
}
