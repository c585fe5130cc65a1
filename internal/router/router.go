package router

import (
	"net/http"

	"packvault-autosell-api/internal/handler"
	"packvault-autosell-api/internal/metrics"
	"packvault-autosell-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	AutoSellHandler  *handler.AutoSellHandler
	InventoryHandler *handler.InventoryHandler
	AdminHandler     *handler.AdminHandler
	AuthHandler      *handler.AuthHandler
	AuthMiddleware   func(http.Handler) http.Handler
	RateLimiter      *middleware.RateLimiter
	Logger           zerolog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key", "X-Token", "X-Login-Key", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", metrics.Handler())

	limit := func(action middleware.Action) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Limit(action)
	}

	// AUTHENTICATED routes (use Group to apply auth middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints (skipped by auth)
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/token", cfg.AuthHandler.GenerateToken)
					r.Post("/revoke", cfg.AuthHandler.RevokeToken)
					r.Post("/refresh", cfg.AuthHandler.RefreshToken)
				})
			}

			if cfg.AutoSellHandler != nil {
				r.Route("/auto-sell", func(r chi.Router) {
					r.With(limit(middleware.ActionPreview)).Post("/preview", cfg.AutoSellHandler.Preview)
					r.With(limit(middleware.ActionProcess)).Post("/process", cfg.AutoSellHandler.Process)
					r.With(limit(middleware.ActionSellItem)).Post("/item/{id}", cfg.AutoSellHandler.SellItem)
					r.With(limit(middleware.ActionProtect)).Post("/protect", cfg.AutoSellHandler.Protect)
					r.With(limit(middleware.ActionStats)).Get("/stats", cfg.AutoSellHandler.Stats)
				})
			}

			if cfg.InventoryHandler != nil {
				r.Get("/inventory", cfg.InventoryHandler.GetInventory)
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Get("/health", cfg.AdminHandler.GetHealth)
					r.Post("/login", cfg.AdminHandler.VerifyLogin)
				})
			}
		})
	})

	return r
}
