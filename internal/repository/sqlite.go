package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		credits INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS item_definitions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rarity TEXT NOT NULL,
		base_value INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		definition_id TEXT NOT NULL,
		acquired_at INTEGER NOT NULL,
		protected INTEGER NOT NULL DEFAULT 0,
		protection_reason TEXT,
		protection_updated_at INTEGER,
		sold_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_user_active ON inventory_items(user_id, sold_at, acquired_at)`,
	`CREATE TABLE IF NOT EXISTS sale_records (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_id TEXT NOT NULL UNIQUE,
		item_name TEXT NOT NULL,
		rarity TEXT NOT NULL,
		price INTEGER NOT NULL,
		credits INTEGER NOT NULL,
		mode TEXT NOT NULL,
		run_id TEXT,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_user_created ON sale_records(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS auto_sell_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		total_processed INTEGER NOT NULL,
		successful_sales INTEGER NOT NULL,
		skipped_items INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		total_credits INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_user_started ON auto_sell_runs(user_id, started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_finished ON auto_sell_runs(finished_at)`,
}

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the SQLite database file (e.g., "./data/autosell.db") or ":memory:".
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLStore, error) {
	if !strings.HasPrefix(dbPath, ":memory:") && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer; one connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, dialect{
		name:       "sqlite",
		insertUser: `INSERT INTO users (id, credits, updated_at) VALUES (?, 0, ?) ON CONFLICT(id) DO NOTHING`,
		upsertDef: `INSERT INTO item_definitions (id, name, rarity, base_value) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, rarity = excluded.rarity, base_value = excluded.base_value`,
		schema: sqliteSchema,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.log.Info().Str("path", dbPath).Msg("SQLite store initialized")
	return store, nil
}
