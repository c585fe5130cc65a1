// Package app wires configuration into the store, engine and supporting services.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"packvault-autosell-api/internal/cache"
	"packvault-autosell-api/internal/config"
	"packvault-autosell-api/internal/lock"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Application ties the engine to its dependencies and manages their lifecycle.
type Application struct {
	Config *config.Config

	Store       *repository.SQLStore
	Redis       *redis.Client // nil when Redis is unavailable and not required
	Cache       cache.Cache
	MemoryCache *cache.MemoryCache // set when the cache is in-process
	Locker      lock.Locker
	LocalLocker *lock.LocalLocker // set when locks are in-process
	Resolver    *pricing.Resolver
	Audit       service.AuditSink

	AutoSell  *service.AutoSellService
	Inventory *service.InventoryService
	Tokens    *service.TokenService // nil without Redis

	log zerolog.Logger
}

// New builds a fully initialised application.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Application, error) {
	a := &Application{Config: cfg, log: log}

	maxRarity, err := model.ParseRarity(cfg.AutoSell.MaxRarity)
	if err != nil {
		return nil, fmt.Errorf("AUTOSELL_MAX_RARITY: %w", err)
	}

	a.Store, err = repository.Open(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := a.connectRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// Cache
	if cfg.Cache.Type == "redis" {
		a.Cache = cache.NewRedisCache(a.Redis, "packvault:cache", cfg.Cache.TTL)
	} else {
		a.MemoryCache = cache.NewMemoryCache(cache.MemoryConfig{
			DefaultTTL: cfg.Cache.TTL,
			SweepEvery: cfg.Cache.SweepEvery,
		})
		a.Cache = a.MemoryCache
	}

	// Per-user locks
	if cfg.Lock.Type == "redis" {
		a.Locker = lock.NewRedisLocker(a.Redis, "packvault:lock", cfg.Lock.TTL, cfg.Lock.WaitTimeout, log)
	} else {
		a.LocalLocker = lock.NewLocalLocker(cfg.Lock.WaitTimeout)
		a.Locker = a.LocalLocker
	}

	// Pricing
	var source pricing.ModifierSource
	switch cfg.AutoSell.ModifierSource {
	case "supply":
		source = pricing.NewSupplySource(a.Store, cfg.AutoSell.ScarcityWeight, nil)
	case "static", "":
		static, err := pricing.NewStaticSource(cfg.AutoSell.ScarcityModifiers)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("AUTOSELL_SCARCITY_MODIFIERS: %w", err)
		}
		source = static
	default:
		a.Close()
		return nil, fmt.Errorf("unsupported modifier source %q", cfg.AutoSell.ModifierSource)
	}
	source = pricing.NewCachedSource(source, a.Cache, "pricing:modifiers", cfg.Cache.TTL)
	a.Resolver, err = pricing.NewResolver(cfg.AutoSell.RarityMultipliers, source, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("AUTOSELL_RARITY_MULTIPLIERS: %w", err)
	}

	// Audit trail
	logSink := service.NewLogAuditSink(log)
	if a.Redis != nil && cfg.Cache.AuditStream != "" {
		a.Audit = service.MultiAuditSink{logSink, service.NewRedisStreamAuditSink(a.Redis, cfg.Cache.AuditStream, 0)}
	} else {
		a.Audit = logSink
	}

	a.AutoSell = service.NewAutoSellService(a.Store, a.Store, a.Resolver, a.Locker, a.Audit, service.AutoSellConfig{
		Policy: service.SelectionPolicy{
			MaxRarity:    maxRarity,
			MaxItemValue: cfg.AutoSell.MaxItemValue,
		},
		MaxItemsPerBatch: cfg.AutoSell.MaxItemsPerBatch,
		BatchTimeout:     cfg.AutoSell.BatchTimeout,
		HistoryLimit:     cfg.AutoSell.HistoryLimit,
	}, log)
	a.Inventory = service.NewInventoryService(a.Store, a.Store)
	if a.Redis != nil {
		a.Tokens = service.NewTokenService(a.Redis, log)
	}
	return a, nil
}

// connectRedis connects when Redis is configured. It is mandatory only for
// the redis cache and lock backends; otherwise a failure disables tokens.
func (a *Application) connectRedis(ctx context.Context) error {
	cfg := a.Config.Cache
	required := cfg.Type == "redis" || a.Config.Lock.Type == "redis"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		if required {
			return fmt.Errorf("redis required by cache/lock backend: %w", err)
		}
		a.log.Warn().Err(err).Str("addr", cfg.RedisAddress()).Msg("Redis unavailable, session tokens disabled")
		return nil
	}

	a.Redis = client
	a.log.Info().Str("addr", cfg.RedisAddress()).Msg("Redis client initialized")
	return nil
}

// Close releases the store and Redis connections.
func (a *Application) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
