package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Log       LogConfig
	Cache     CacheConfig
	Storage   StorageConfig
	AutoSell  AutoSellConfig
	Lock      LockConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string   `envconfig:"APP_NAME" default:"packvault-autosell"`
	Environment string   `envconfig:"APP_ENV" default:"development"`
	Version     string   `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string   `envconfig:"LOGIN_KEY" default:""` // Admin stats login key
	APIKeys     []string `envconfig:"API_KEYS" default:""`  // Trusted service callers
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// CacheConfig holds cache and Redis settings.
type CacheConfig struct {
	Type       string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL        time.Duration `envconfig:"CACHE_TTL" default:"1m"`
	SweepEvery int           `envconfig:"CACHE_SWEEP_EVERY" default:"256"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	AuditStream   string `envconfig:"REDIS_AUDIT_STREAM" default:"packvault:autosell:audit"`
}

// StorageConfig holds inventory and ledger database settings.
type StorageConfig struct {
	Type string `envconfig:"STORAGE_DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path string `envconfig:"STORAGE_DB_PATH" default:"./data/autosell.db"`

	Host     string `envconfig:"STORAGE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORAGE_DB_PORT" default:"5432"`
	Name     string `envconfig:"STORAGE_DB_NAME" default:"packvault"`
	User     string `envconfig:"STORAGE_DB_USER" default:"postgres"`
	Password string `envconfig:"STORAGE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORAGE_DB_SSLMODE" default:"disable"`
}

// AutoSellConfig holds engine policy settings.
type AutoSellConfig struct {
	MaxRarity         string             `envconfig:"AUTOSELL_MAX_RARITY" default:"mythic"`
	MaxItemValue      int64              `envconfig:"AUTOSELL_MAX_ITEM_VALUE" default:"0"`
	MaxItemsPerBatch  int                `envconfig:"AUTOSELL_MAX_ITEMS_PER_BATCH" default:"500"`
	BatchTimeout      time.Duration      `envconfig:"AUTOSELL_BATCH_TIMEOUT" default:"2m"`
	HistoryLimit      int                `envconfig:"AUTOSELL_HISTORY_LIMIT" default:"50"`
	RarityMultipliers map[string]float64 `envconfig:"AUTOSELL_RARITY_MULTIPLIERS" default:""`
	ModifierSource    string             `envconfig:"AUTOSELL_MODIFIER_SOURCE" default:"static"` // static or supply
	ScarcityModifiers map[string]float64 `envconfig:"AUTOSELL_SCARCITY_MODIFIERS" default:""`
	ScarcityWeight    float64            `envconfig:"AUTOSELL_SCARCITY_WEIGHT" default:"0"`
	RunRetention      time.Duration      `envconfig:"AUTOSELL_RUN_RETENTION" default:"2160h"`
}

// LockConfig holds per-user mutation lock settings.
type LockConfig struct {
	Type        string        `envconfig:"LOCK_TYPE" default:"local"` // local or redis
	TTL         time.Duration `envconfig:"LOCK_TTL" default:"3m"`
	WaitTimeout time.Duration `envconfig:"LOCK_WAIT_TIMEOUT" default:"10s"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Enabled   bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	IdleAfter time.Duration `envconfig:"RATE_LIMIT_IDLE_AFTER" default:"10m"`
}

// SchedulerConfig holds background job schedules (cron syntax with seconds).
type SchedulerConfig struct {
	RunRetentionSchedule string `envconfig:"SCHEDULE_RUN_RETENTION" default:"0 0 3 * * *"`
	CacheSweepSchedule   string `envconfig:"SCHEDULE_CACHE_SWEEP" default:"@every 1m"`
	LimiterSweepSchedule string `envconfig:"SCHEDULE_LIMITER_SWEEP" default:"@every 5m"`
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StorageConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Name, s.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (s *StorageConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, s.Port, s.Name)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
