package repository

import (
	"fmt"

	"packvault-autosell-api/internal/config"

	"github.com/rs/zerolog"
)

// Open creates the store selected by configuration.
func Open(cfg config.StorageConfig, log zerolog.Logger) (*SQLStore, error) {
	switch cfg.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.PostgresDSN(), log)
	case "mysql":
		return NewMySQLStore(cfg.MySQLDSN(), log)
	case "sqlite", "":
		return NewSQLiteStore(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
