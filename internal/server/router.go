package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tzedaka/maaser/internal/handler"
	"github.com/tzedaka/maaser/internal/middleware"
)

// RouterConfig carries the middleware settings of the HTTP API.
type RouterConfig struct {
	Logger        *slog.Logger
	Authenticator middleware.Authenticator
	// Limiter backs the per-session and per-IP token buckets.
	// Nil disables rate limiting.
	Limiter            middleware.RateLimiter
	RateLimitEnabled   bool
	APIPerMinute       int
	AuthPerMinute      int
	CORSAllowedOrigins []string
	IsDevelopment      bool
	MaxRequestBodySize int64
	// AuthFailureDelay pads rejected bearer tokens. See middleware.AuthConfig.
	AuthFailureDelay time.Duration
}

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Base         *handler.Handler
	Health       *handler.HealthHandler
	Metrics      *handler.MetricsHandler
	Auth         *handler.AuthHandler
	Ledger       *handler.LedgerHandler
	Integrations *handler.IntegrationHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = cfg.IsDevelopment
	if cfg.MaxRequestBodySize > 0 {
		securityCfg.MaxRequestBodySize = cfg.MaxRequestBodySize
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(securityCfg))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(securityCfg.MaxRequestBodySize))

	// Probes and metrics (no auth required)
	r.Get("/healthz", h.Health.Healthz)
	r.Get("/readyz", h.Health.Readyz)
	r.Get("/metrics", h.Metrics.Metrics)

	authCfg := middleware.AuthConfig{
		Logger:             cfg.Logger,
		Authenticator:      cfg.Authenticator,
		MinFailureDuration: cfg.AuthFailureDelay,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:        cfg.Logger,
		Limiter:       cfg.Limiter,
		Enabled:       cfg.RateLimitEnabled && cfg.Limiter != nil,
		APIPerMinute:  cfg.APIPerMinute,
		AuthPerMinute: cfg.AuthPerMinute,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireJSON())

		// Public
		r.Get("/charities", h.Ledger.ListCharities)
		r.Get("/auth/providers", h.Auth.Providers)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitAuth(rateLimitCfg))
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/login", h.Auth.Login)
		})

		// Bearer session required
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/session", h.Auth.Session)
			r.Post("/auth/pin", h.Auth.SetPin)
			r.Post("/auth/pin/verify", h.Auth.VerifyPin)

			// Bearer session and a verified security PIN
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePin())

				r.Get("/me", h.Auth.Me)
				r.Patch("/me", h.Auth.UpdateMe)

				r.Route("/transactions", func(r chi.Router) {
					r.Get("/", h.Ledger.ListTransactions)
					r.Post("/", h.Ledger.CreateTransaction)
					r.With(middleware.ValidURLParam("id")).Patch("/{id}", h.Ledger.UpdateTransaction)
					r.With(middleware.ValidURLParam("id")).Delete("/{id}", h.Ledger.DeleteTransaction)
				})

				r.Route("/donations", func(r chi.Router) {
					r.Get("/", h.Ledger.ListDonations)
					r.Post("/", h.Ledger.CreateDonation)
					r.With(middleware.ValidURLParam("id")).Delete("/{id}", h.Ledger.DeleteDonation)
				})

				r.Get("/summary", h.Ledger.Summary)
				r.Get("/activity", h.Ledger.Activity)
				r.Post("/reset", h.Ledger.Reset)

				r.Route("/integrations", func(r chi.Router) {
					r.Get("/", h.Integrations.Status)
					r.Post("/sync", h.Integrations.Sync)
					r.With(middleware.ValidURLParam("provider")).Delete("/{provider}", h.Integrations.Disconnect)
				})
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.Base.NotFound)
	r.MethodNotAllowed(h.Base.MethodNotAllowed)

	return r
}
