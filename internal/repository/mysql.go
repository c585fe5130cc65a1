package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes live in the table DDL.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		credits BIGINT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS item_definitions (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		rarity VARCHAR(32) NOT NULL,
		base_value BIGINT NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS inventory_items (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		definition_id VARCHAR(64) NOT NULL,
		acquired_at BIGINT NOT NULL,
		protected TINYINT(1) NOT NULL DEFAULT 0,
		protection_reason VARCHAR(255) NULL,
		protection_updated_at BIGINT NULL,
		sold_at BIGINT NULL,
		KEY idx_items_user_active (user_id, sold_at, acquired_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS sale_records (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		item_id VARCHAR(64) NOT NULL UNIQUE,
		item_name VARCHAR(255) NOT NULL,
		rarity VARCHAR(32) NOT NULL,
		price BIGINT NOT NULL,
		credits BIGINT NOT NULL,
		mode VARCHAR(16) NOT NULL,
		run_id VARCHAR(64) NULL,
		created_at BIGINT NOT NULL,
		KEY idx_sales_user_created (user_id, created_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS auto_sell_runs (
		id VARCHAR(64) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		total_processed INT NOT NULL,
		successful_sales INT NOT NULL,
		skipped_items INT NOT NULL,
		errors INT NOT NULL,
		total_credits BIGINT NOT NULL,
		remaining INT NOT NULL,
		started_at BIGINT NOT NULL,
		finished_at BIGINT NOT NULL,
		KEY idx_runs_user_started (user_id, started_at),
		KEY idx_runs_finished (finished_at)
	) ENGINE=InnoDB`,
}

// NewMySQLStore creates a new MySQL-backed store.
func NewMySQLStore(dsn string, log zerolog.Logger) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, dialect{
		name:       "mysql",
		forUpdate:  " FOR UPDATE",
		insertUser: `INSERT IGNORE INTO users (id, credits, updated_at) VALUES (?, 0, ?)`,
		upsertDef: `INSERT INTO item_definitions (id, name, rarity, base_value) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE name = VALUES(name), rarity = VALUES(rarity), base_value = VALUES(base_value)`,
		schema: mysqlSchema,
	}, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	store.log.Info().Msg("MySQL store initialized")
	return store, nil
}
