package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"packvault-autosell-api/internal/app"
	"packvault-autosell-api/internal/config"
	"packvault-autosell-api/internal/handler"
	"packvault-autosell-api/internal/logger"
	"packvault-autosell-api/internal/middleware"
	"packvault-autosell-api/internal/router"
	"packvault-autosell-api/internal/scheduler"
	"packvault-autosell-api/internal/service"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)
	log.Info().Str("env", cfg.App.Environment).Str("version", cfg.App.Version).Msg("Starting auto-sell API")

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	// Rate limiting
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.DefaultLimits, cfg.RateLimit.IdleAfter)
	}

	// Background jobs
	sched := scheduler.New(log)
	cleanup := service.NewRunLogCleanup(application.Store, service.CleanupConfig{Retention: cfg.AutoSell.RunRetention}, log)
	if err := sched.AddJob(cfg.Scheduler.RunRetentionSchedule, cleanup); err != nil {
		log.Fatal().Err(err).Msg("Invalid run retention schedule")
	}
	if application.MemoryCache != nil {
		if err := sched.AddJob(cfg.Scheduler.CacheSweepSchedule, scheduler.NewSweepJob("cache_sweep", application.MemoryCache, log)); err != nil {
			log.Fatal().Err(err).Msg("Invalid cache sweep schedule")
		}
	}
	if limiter != nil {
		if err := sched.AddJob(cfg.Scheduler.LimiterSweepSchedule, scheduler.NewSweepJob("limiter_sweep", limiter, log)); err != nil {
			log.Fatal().Err(err).Msg("Invalid limiter sweep schedule")
		}
	}
	sched.Start()

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version)
	healthHandler.AddCheck("database", application.Store)
	if application.Redis != nil {
		healthHandler.AddCheck("redis", handler.PingFunc(func(ctx context.Context) error {
			return application.Redis.Ping(ctx).Err()
		}))
	}

	adminHandler := handler.NewAdminHandler(application.Store, application.Store.Dialect(), cfg.App.LoginKey)
	if application.MemoryCache != nil {
		adminHandler.AddGauge("cache_entries", application.MemoryCache.Len)
	}
	if application.LocalLocker != nil {
		adminHandler.AddGauge("user_locks", application.LocalLocker.Held)
	}
	if limiter != nil {
		adminHandler.AddGauge("rate_limit_buckets", limiter.Len)
	}

	var authHandler *handler.AuthHandler
	if application.Tokens != nil {
		authHandler = handler.NewAuthHandler(application.Tokens)
	}

	authConfig := middleware.AuthConfig{APIKeys: cfg.App.APIKeys}
	if application.Tokens != nil {
		authConfig.TokenService = application.Tokens
	}

	r := router.New(router.Config{
		Handler:          healthHandler,
		AutoSellHandler:  handler.NewAutoSellHandler(application.AutoSell, log),
		InventoryHandler: handler.NewInventoryHandler(application.Inventory),
		AdminHandler:     adminHandler,
		AuthHandler:      authHandler,
		AuthMiddleware:   middleware.NewAuthMiddleware(authConfig),
		RateLimiter:      limiter,
		Logger:           log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Address()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	sched.Stop()

	log.Info().Msg("Server stopped")
}
