package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/pkg/uid"

	"github.com/rs/zerolog"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name       string
	numbered   bool   // $1, $2 placeholders instead of ?
	forUpdate  string // row lock suffix, empty when the engine has none
	insertUser string
	upsertDef  string
	schema     []string
}

// SQLStore implements Store on top of database/sql.
// All timestamps are stored as unix milliseconds so the schema is portable.
type SQLStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
	log zerolog.Logger
}

func newSQLStore(db *sql.DB, d dialect, log zerolog.Logger) (*SQLStore, error) {
	s := &SQLStore{
		db:  db,
		d:   d,
		now: time.Now,
		log: log.With().Str("component", "store").Str("dialect", d.name).Logger(),
	}

	if err := s.createTables(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// SetClock replaces the clock used for sale and protection timestamps.
func (s *SQLStore) SetClock(now func() time.Time) {
	s.now = now
}

// Dialect returns the backend name.
func (s *SQLStore) Dialect() string {
	return s.d.name
}

func (s *SQLStore) createTables(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// q rewrites ? placeholders for dialects that number them.
func (s *SQLStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

const selectItem = `
	SELECT i.id, i.user_id, i.definition_id, d.name, d.rarity, d.base_value,
		i.acquired_at, i.protected, i.protection_reason, i.protection_updated_at, i.sold_at
	FROM inventory_items i
	LEFT JOIN item_definitions d ON d.id = i.definition_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*model.InventoryItem, error) {
	var (
		item       model.InventoryItem
		name       sql.NullString
		rarity     sql.NullString
		baseValue  sql.NullInt64
		acquiredAt int64
		reason     sql.NullString
		protAt     sql.NullInt64
		soldAt     sql.NullInt64
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.Definition.ID,
		&name,
		&rarity,
		&baseValue,
		&acquiredAt,
		&item.Protected,
		&reason,
		&protAt,
		&soldAt,
	)
	if err != nil {
		return nil, err
	}

	// A dangling definition leaves name/rarity empty; pricing rejects it.
	item.Definition.Name = name.String
	item.Definition.BaseValue = baseValue.Int64
	if rarity.Valid {
		item.Definition.Rarity, _ = model.ParseRarity(rarity.String)
	}
	if !name.Valid {
		item.Definition.ID = ""
	}
	item.AcquiredAt = fromMillis(acquiredAt)
	item.ProtectionReason = reason.String
	item.ProtectionUpdatedAt = nullMillis(protAt)
	item.SoldAt = nullMillis(soldAt)
	return &item, nil
}

// ListActiveItems returns the unsold items of a user in acquisition order.
func (s *SQLStore) ListActiveItems(ctx context.Context, userID string) ([]model.InventoryItem, error) {
	query := selectItem + `
	WHERE i.user_id = ? AND i.sold_at IS NULL
	ORDER BY i.acquired_at ASC, i.id ASC`

	rows, err := s.db.QueryContext(ctx, s.q(query), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := []model.InventoryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory: %w", err)
	}
	return items, nil
}

// GetItem returns an item by ID regardless of owner or sold state.
func (s *SQLStore) GetItem(ctx context.Context, itemID string) (*model.InventoryItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, s.q(selectItem+` WHERE i.id = ?`), itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// lockItem takes a row lock on the item where the dialect supports it.
func (s *SQLStore) lockItem(ctx context.Context, tx *sql.Tx, itemID string) error {
	if s.d.forUpdate == "" {
		return nil
	}
	var id string
	err := tx.QueryRowContext(ctx, s.q(`SELECT id FROM inventory_items WHERE id = ?`+s.d.forUpdate), itemID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// SetProtection sets the protection flag of an active item owned by userID.
func (s *SQLStore) SetProtection(ctx context.Context, userID, itemID string, protect bool, reason string, at time.Time) (state *model.ProtectionState, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.lockItem(ctx, tx, itemID); err != nil {
		return nil, err
	}

	var item *model.InventoryItem
	item, err = scanItem(tx.QueryRowContext(ctx, s.q(selectItem+` WHERE i.id = ?`), itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, err
	}
	if item.UserID != userID || !item.Active() {
		err = ErrNotFound
		return nil, err
	}

	state = &model.ProtectionState{
		UserID:    userID,
		ItemID:    itemID,
		Protected: item.Protected,
		Reason:    item.ProtectionReason,
		UpdatedAt: item.ProtectionUpdatedAt,
	}
	if item.Protected == protect {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return state, nil
	}

	var storedReason sql.NullString
	if protect && reason != "" {
		storedReason = sql.NullString{String: reason, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, s.q(`
		UPDATE inventory_items
		SET protected = ?, protection_reason = ?, protection_updated_at = ?
		WHERE id = ?`), protect, storedReason, toMillis(at), itemID); err != nil {
		return nil, fmt.Errorf("failed to update protection: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	updatedAt := fromMillis(toMillis(at))
	state.Protected = protect
	state.Reason = storedReason.String
	state.UpdatedAt = &updatedAt
	state.Changed = true
	return state, nil
}

// GrantItem adds a new item to a user's inventory, creating the user if needed.
func (s *SQLStore) GrantItem(ctx context.Context, item model.InventoryItem) (err error) {
	if item.UserID == "" || item.Definition.ID == "" {
		return fmt.Errorf("item requires user and definition")
	}
	if item.ID == "" {
		item.ID = uid.New()
	}
	if item.AcquiredAt.IsZero() {
		item.AcquiredAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.q(s.d.insertUser), item.UserID, toMillis(s.now())); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}

	var reason sql.NullString
	var protAt sql.NullInt64
	if item.Protected {
		reason = sql.NullString{String: item.ProtectionReason, Valid: item.ProtectionReason != ""}
		protAt = sql.NullInt64{Int64: toMillis(item.AcquiredAt), Valid: true}
	}
	if _, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO inventory_items (id, user_id, definition_id, acquired_at, protected, protection_reason, protection_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		item.ID, item.UserID, item.Definition.ID, toMillis(item.AcquiredAt), item.Protected, reason, protAt); err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertDefinition inserts or updates an item definition.
func (s *SQLStore) UpsertDefinition(ctx context.Context, def model.ItemDefinition) error {
	if def.ID == "" || !def.Rarity.Valid() || def.BaseValue < 0 {
		return fmt.Errorf("invalid item definition %q", def.ID)
	}
	_, err := s.db.ExecContext(ctx, s.q(s.d.upsertDef), def.ID, def.Name, def.Rarity.String(), def.BaseValue)
	if err != nil {
		return fmt.Errorf("failed to upsert definition: %w", err)
	}
	return nil
}

// CountActiveByRarity returns the live supply of unsold items per rarity.
func (s *SQLStore) CountActiveByRarity(ctx context.Context) (map[model.Rarity]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.rarity, COUNT(*)
		FROM inventory_items i
		JOIN item_definitions d ON d.id = i.definition_id
		WHERE i.sold_at IS NULL
		GROUP BY d.rarity`)
	if err != nil {
		return nil, fmt.Errorf("failed to count supply: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Rarity]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan supply: %w", err)
		}
		if r, err := model.ParseRarity(name); err == nil {
			counts[r] = n
		}
	}
	return counts, rows.Err()
}

// CommitSale atomically marks the item sold, credits the user and appends the sale record.
func (s *SQLStore) CommitSale(ctx context.Context, userID, itemID string, mode model.TriggerMode, runID string, price PriceFunc) (rec *model.SaleRecord, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.lockItem(ctx, tx, itemID); err != nil {
		return nil, err
	}

	var item *model.InventoryItem
	item, err = scanItem(tx.QueryRowContext(ctx, s.q(selectItem+` WHERE i.id = ?`), itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return nil, err
	}
	if item.UserID != userID || !item.Active() {
		err = ErrNotOwned
		return nil, err
	}
	if item.Protected {
		err = ErrProtected
		return nil, err
	}

	var amount int64
	if amount, err = price(*item); err != nil {
		return nil, err
	}
	if amount < 0 {
		err = fmt.Errorf("negative price %d for item %s", amount, itemID)
		return nil, err
	}

	now := s.now()
	var res sql.Result
	res, err = tx.ExecContext(ctx, s.q(`
		UPDATE inventory_items SET sold_at = ?
		WHERE id = ? AND user_id = ? AND sold_at IS NULL AND protected = ?`),
		toMillis(now), itemID, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to mark item sold: %w", err)
	}
	var n int64
	if n, err = res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to mark item sold: %w", err)
	}
	if n == 0 {
		err = ErrNotOwned
		return nil, err
	}

	res, err = tx.ExecContext(ctx, s.q(`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`),
		amount, toMillis(now), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to credit user: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to credit user: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("no balance row for user %s", userID)
		return nil, err
	}

	rec = &model.SaleRecord{
		ID:        uid.New(),
		UserID:    userID,
		ItemID:    itemID,
		ItemName:  item.Definition.Name,
		Rarity:    item.Definition.Rarity,
		Price:     amount,
		Credits:   amount,
		Mode:      mode,
		RunID:     runID,
		CreatedAt: fromMillis(toMillis(now)),
	}
	var run sql.NullString
	if runID != "" {
		run = sql.NullString{String: runID, Valid: true}
	}
	if _, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO sale_records (id, user_id, item_id, item_name, rarity, price, credits, mode, run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.UserID, rec.ItemID, rec.ItemName, rec.Rarity.String(), rec.Price, rec.Credits,
		string(rec.Mode), run, toMillis(now)); err != nil {
		return nil, fmt.Errorf("failed to append sale record: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return rec, nil
}

// Balance returns the current credit balance of a user.
func (s *SQLStore) Balance(ctx context.Context, userID string) (int64, error) {
	var credits int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT credits FROM users WHERE id = ?`), userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return credits, nil
}

// ListSales returns the most recent sale records since a point in time.
func (s *SQLStore) ListSales(ctx context.Context, userID string, since time.Time, limit int) ([]model.SaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, item_id, item_name, rarity, price, credits, mode, run_id, created_at
		FROM sale_records
		WHERE user_id = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), userID, toMillis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	records := []model.SaleRecord{}
	for rows.Next() {
		var (
			rec       model.SaleRecord
			rarity    string
			mode      string
			runID     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ItemID, &rec.ItemName, &rarity,
			&rec.Price, &rec.Credits, &mode, &runID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale record: %w", err)
		}
		rec.Rarity, _ = model.ParseRarity(rarity)
		rec.Mode = model.TriggerMode(mode)
		rec.RunID = runID.String
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales: %w", err)
	}
	return records, nil
}

// SaleTotals aggregates sale records since a point in time.
func (s *SQLStore) SaleTotals(ctx context.Context, userID string, since time.Time) (model.SaleTotals, error) {
	var totals model.SaleTotals
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN mode = 'single' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(credits), 0)
		FROM sale_records
		WHERE user_id = ? AND created_at >= ?`), userID, toMillis(since)).
		Scan(&totals.Sales, &totals.SingleSales, &totals.TotalCredits)
	if err != nil {
		return totals, fmt.Errorf("failed to aggregate sales: %w", err)
	}
	totals.BatchSales = totals.Sales - totals.SingleSales
	return totals, nil
}

// RecordRun persists the summary of a batch run.
func (s *SQLStore) RecordRun(ctx context.Context, run model.RunRecord) error {
	if run.ID == "" {
		run.ID = uid.New()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO auto_sell_runs (id, user_id, total_processed, successful_sales, skipped_items, errors,
			total_credits, remaining, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.UserID, run.TotalProcessed, run.SuccessfulSales, run.SkippedItems, run.Errors,
		run.TotalCredits, run.Remaining, toMillis(run.StartedAt), toMillis(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RunTotals aggregates run records since a point in time.
func (s *SQLStore) RunTotals(ctx context.Context, userID string, since time.Time) (model.RunTotals, error) {
	var totals model.RunTotals
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*),
			COALESCE(SUM(total_processed), 0),
			COALESCE(SUM(skipped_items), 0),
			COALESCE(SUM(errors), 0)
		FROM auto_sell_runs
		WHERE user_id = ? AND started_at >= ?`), userID, toMillis(since)).
		Scan(&totals.Runs, &totals.TotalProcessed, &totals.SkippedItems, &totals.Errors)
	if err != nil {
		return totals, fmt.Errorf("failed to aggregate runs: %w", err)
	}
	return totals, nil
}

// DeleteRunsBefore prunes run records older than cutoff.
func (s *SQLStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM auto_sell_runs WHERE finished_at < ?`), toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned auto-sell run log")
	}
	return deleted, nil
}

// GetStats returns statistics about the database.
func (s *SQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})
	stats["dialect"] = s.d.name

	counts := []struct {
		key   string
		query string
	}{
		{"users", `SELECT COUNT(*) FROM users`},
		{"active_items", `SELECT COUNT(*) FROM inventory_items WHERE sold_at IS NULL`},
		{"sold_items", `SELECT COUNT(*) FROM inventory_items WHERE sold_at IS NOT NULL`},
		{"sale_records", `SELECT COUNT(*) FROM sale_records`},
		{"runs", `SELECT COUNT(*) FROM auto_sell_runs`},
	}
	for _, c := range counts {
		var n int64
		if err := s.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	dbStats := s.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}
	return stats, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ensure SQLStore implements Store
var _ Store = (*SQLStore)(nil)
