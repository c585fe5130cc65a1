package repository

import (
	"context"
	"errors"
	"time"

	"packvault-autosell-api/internal/model"
)

// Store errors returned by the commit and protection paths.
var (
	ErrNotFound  = errors.New("item not found")
	ErrNotOwned  = errors.New("item not owned by user")
	ErrProtected = errors.New("item is protected")
)

// PriceFunc prices an item row that was re-read inside the commit transaction.
type PriceFunc func(item model.InventoryItem) (int64, error)

// InventoryRepository defines inventory and protection data access methods.
type InventoryRepository interface {
	// ListActiveItems returns the unsold items of a user in acquisition order.
	ListActiveItems(ctx context.Context, userID string) ([]model.InventoryItem, error)

	// GetItem returns an item by ID regardless of owner or sold state.
	GetItem(ctx context.Context, itemID string) (*model.InventoryItem, error)

	// SetProtection sets the protection flag of an active item owned by userID.
	// Setting the current value is a no-op and reports Changed=false.
	SetProtection(ctx context.Context, userID, itemID string, protect bool, reason string, at time.Time) (*model.ProtectionState, error)

	// GrantItem adds a new item to a user's inventory, creating the user if needed.
	GrantItem(ctx context.Context, item model.InventoryItem) error

	// UpsertDefinition inserts or updates an item definition.
	UpsertDefinition(ctx context.Context, def model.ItemDefinition) error

	// CountActiveByRarity returns the live supply of unsold items per rarity.
	CountActiveByRarity(ctx context.Context) (map[model.Rarity]int64, error)
}

// LedgerRepository defines sale, balance and run-log data access methods.
type LedgerRepository interface {
	// CommitSale atomically marks the item sold, credits the user and appends
	// the sale record. Nothing is written if any step fails.
	CommitSale(ctx context.Context, userID, itemID string, mode model.TriggerMode, runID string, price PriceFunc) (*model.SaleRecord, error)

	// Balance returns the current credit balance of a user.
	Balance(ctx context.Context, userID string) (int64, error)

	// ListSales returns the most recent sale records since a point in time.
	ListSales(ctx context.Context, userID string, since time.Time, limit int) ([]model.SaleRecord, error)

	// SaleTotals aggregates sale records since a point in time.
	SaleTotals(ctx context.Context, userID string, since time.Time) (model.SaleTotals, error)

	// RecordRun persists the summary of a batch run.
	RecordRun(ctx context.Context, run model.RunRecord) error

	// RunTotals aggregates run records since a point in time.
	RunTotals(ctx context.Context, userID string, since time.Time) (model.RunTotals, error)

	// DeleteRunsBefore prunes run records older than cutoff.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store combines inventory and ledger access over one database.
type Store interface {
	InventoryRepository
	LedgerRepository

	// GetStats returns statistics about the database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Close closes the repository connection.
	Close() error
}
