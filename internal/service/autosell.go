package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"packvault-autosell-api/internal/lock"
	"packvault-autosell-api/internal/metrics"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/pkg/uid"

	"github.com/rs/zerolog"
)

// MaxProtectionReasonLength bounds the free-text protection reason.
const MaxProtectionReasonLength = 255

// MaxHistoryLimit caps the sale history returned with period stats.
const MaxHistoryLimit = 50

// Pricer hands out immutable pricing snapshots.
type Pricer interface {
	Snapshot(ctx context.Context) *pricing.Snapshot
}

// AutoSellConfig holds engine policy.
type AutoSellConfig struct {
	Policy           SelectionPolicy
	MaxItemsPerBatch int
	BatchTimeout     time.Duration
	HistoryLimit     int
}

// AutoSellService orchestrates preview, batch and single sales, protection
// toggles and period stats for one user at a time.
type AutoSellService struct {
	inventory repository.InventoryRepository
	ledger    repository.LedgerRepository
	pricer    Pricer
	executor  *SaleExecutor
	locker    lock.Locker
	audit     AuditSink
	cfg       AutoSellConfig
	now       func() time.Time
	log       zerolog.Logger
}

// NewAutoSellService creates the engine. audit may be nil.
func NewAutoSellService(
	inventory repository.InventoryRepository,
	ledger repository.LedgerRepository,
	pricer Pricer,
	locker lock.Locker,
	audit AuditSink,
	cfg AutoSellConfig,
	log zerolog.Logger,
) *AutoSellService {
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > MaxHistoryLimit {
		cfg.HistoryLimit = MaxHistoryLimit
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 2 * time.Minute
	}
	return &AutoSellService{
		inventory: inventory,
		ledger:    ledger,
		pricer:    pricer,
		executor:  NewSaleExecutor(ledger, audit, log),
		locker:    locker,
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "autosell").Logger(),
	}
}

// SetClock replaces the clock used for run and protection timestamps.
func (s *AutoSellService) SetClock(now func() time.Time) {
	s.now = now
}

// Preview reports what a batch run would sell right now. It reads only and
// takes no lock, so the estimates are advisory.
func (s *AutoSellService) Preview(ctx context.Context, userID string) (*model.Preview, error) {
	if userID == "" {
		return nil, invalidRequest("user id is required")
	}

	items, err := s.inventory.ListActiveItems(ctx, userID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}
	snap := s.pricer.Snapshot(ctx)
	sel := s.cfg.Policy.Select(items)

	preview := &model.Preview{
		UserID:         userID,
		Candidates:     []model.PricedItem{},
		Skipped:        skippedItems(sel.Skipped),
		PricingVersion: snap.Version,
		Advisory:       true,
		GeneratedAt:    s.now(),
	}
	candidates, rejected := s.cfg.Policy.Price(snap, sel.Eligible)
	preview.Candidates = candidates
	preview.Skipped = append(preview.Skipped, rejected...)
	for _, c := range candidates {
		preview.TotalEstimatedCredits += c.EstimatedPrice
	}
	return preview, nil
}

// ProcessBatch sells every eligible item of the user, up to the per-batch
// ceiling. Per-item failures are counted, not returned.
func (s *AutoSellService) ProcessBatch(ctx context.Context, userID string) (*model.AutoSellRunStats, error) {
	if userID == "" {
		return nil, invalidRequest("user id is required")
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A client disconnect must not abort a batch half-way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.BatchTimeout)
	defer cancel()

	started := s.now()
	items, err := s.inventory.ListActiveItems(ctx, userID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}

	snap := s.pricer.Snapshot(ctx)
	sel := s.cfg.Policy.Select(items)

	stats := &model.AutoSellRunStats{
		RunID:          uid.New(),
		PricingVersion: snap.Version,
		Skipped:        skippedItems(sel.Skipped),
	}

	eligible := sel.Eligible
	if limit := s.cfg.MaxItemsPerBatch; limit > 0 && len(eligible) > limit {
		stats.Remaining = len(eligible) - limit
		eligible = eligible[:limit]
	}
	candidates, rejected := s.cfg.Policy.Price(snap, eligible)
	stats.Skipped = append(stats.Skipped, rejected...)

	outcome := s.executor.Sell(ctx, userID, candidates, model.TriggerBatch, snap, stats.RunID)
	stats.Results = outcome.Results
	for _, res := range outcome.Results {
		if res.Status == model.ItemSkipped {
			stats.Skipped = append(stats.Skipped, model.SkippedItem{ItemID: res.ItemID, ItemName: res.ItemName, Reason: res.Reason})
		}
	}

	stats.SuccessfulSales = outcome.Sold
	stats.SkippedItems = len(stats.Skipped)
	stats.Errors = outcome.Failed
	stats.TotalCredits = outcome.CreditDelta
	stats.TotalProcessed = stats.SuccessfulSales + stats.SkippedItems + stats.Errors

	finished := s.now()
	run := model.RunRecord{
		ID:              stats.RunID,
		UserID:          userID,
		TotalProcessed:  stats.TotalProcessed,
		SuccessfulSales: stats.SuccessfulSales,
		SkippedItems:    stats.SkippedItems,
		Errors:          stats.Errors,
		TotalCredits:    stats.TotalCredits,
		Remaining:       stats.Remaining,
		StartedAt:       started,
		FinishedAt:      finished,
	}
	if err := s.ledger.RecordRun(ctx, run); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("run_id", run.ID).Msg("Failed to persist run summary")
	}
	metrics.RecordBatchRun(finished.Sub(started))
	s.record(ctx, AuditEvent{
		Action:  AuditBatchRun,
		UserID:  userID,
		RunID:   run.ID,
		Mode:    string(model.TriggerBatch),
		Credits: stats.TotalCredits,
		Summary: fmt.Sprintf("processed=%d sold=%d skipped=%d errors=%d remaining=%d",
			stats.TotalProcessed, stats.SuccessfulSales, stats.SkippedItems, stats.Errors, stats.Remaining),
		At: finished,
	})

	s.log.Info().
		Str("user_id", userID).
		Str("run_id", run.ID).
		Int("processed", stats.TotalProcessed).
		Int("sold", stats.SuccessfulSales).
		Int("skipped", stats.SkippedItems).
		Int("errors", stats.Errors).
		Int64("credits", stats.TotalCredits).
		Msg("Batch run finished")
	return stats, nil
}

// SellSingle sells one item on request. Selection ceilings do not apply to
// an explicit sale; protection does.
func (s *AutoSellService) SellSingle(ctx context.Context, userID, itemID string) (*model.SingleSaleResult, error) {
	if userID == "" || itemID == "" {
		return nil, invalidRequest("user id and item id are required")
	}

	release, err := s.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	item, err := s.inventory.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindItemNotFound, itemID, nil)
		}
		return nil, newError(KindPersistenceFailure, itemID, err)
	}
	switch {
	case item.UserID != userID:
		return nil, newError(KindItemNotFound, itemID, nil)
	case !item.Active():
		return nil, newError(KindItemNotOwned, itemID, nil)
	case item.Protected:
		return nil, newError(KindItemProtected, itemID, nil)
	}

	snap := s.pricer.Snapshot(ctx)
	estimate, err := snap.PriceOf(*item)
	if err != nil {
		return nil, newError(KindPricingUnavailable, itemID, err)
	}

	res, rec, err := s.executor.SellOne(ctx, userID, model.PricedItem{Item: *item, EstimatedPrice: estimate}, model.TriggerSingle, snap, "")
	if err != nil {
		return nil, err
	}
	return &model.SingleSaleResult{
		ItemID:          rec.ItemID,
		ItemName:        rec.ItemName,
		Price:           rec.Price,
		CreditsReceived: rec.Credits,
		PriceChanged:    res.PriceChanged,
	}, nil
}

// ToggleProtection sets or clears the auto-sell protection of an item.
// Repeating the current state is a no-op.
func (s *AutoSellService) ToggleProtection(ctx context.Context, userID, itemID string, protect bool, reason string) (*model.ProtectionState, error) {
	if userID == "" || itemID == "" {
		return nil, invalidRequest("user id and item id are required")
	}
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > MaxProtectionReasonLength {
		return nil, invalidRequest("reason must be at most %d characters", MaxProtectionReasonLength)
	}
	if !protect {
		reason = ""
	}

	state, err := s.inventory.SetProtection(ctx, userID, itemID, protect, reason, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindItemNotFound, itemID, nil)
		}
		return nil, newError(KindPersistenceFailure, itemID, err)
	}

	if state.Changed {
		s.record(ctx, AuditEvent{
			Action:    AuditProtectionChanged,
			UserID:    userID,
			ItemID:    itemID,
			Protected: state.Protected,
			Summary:   state.Reason,
			At:        s.now(),
		})
	}
	return state, nil
}

func (s *AutoSellService) acquire(ctx context.Context, userID string) (func(), error) {
	release, err := s.locker.Acquire(ctx, "user:"+userID)
	if err == nil {
		return release, nil
	}
	if errors.Is(err, lock.ErrLockTimeout) {
		metrics.RecordLockTimeout()
		return nil, &Error{Kind: KindOperationInProgress, Msg: "another auto-sell operation is running for this user", Err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &Error{Kind: KindOperationInProgress, Msg: "request cancelled while waiting for user lock", Err: ctxErr}
	}
	return nil, newError(KindPersistenceFailure, "", err)
}

func (s *AutoSellService) record(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("action", event.Action.String()).Msg("Failed to record audit event")
	}
}

func skippedItems(skips []Skip) []model.SkippedItem {
	out := make([]model.SkippedItem, 0, len(skips))
	for _, sk := range skips {
		out = append(out, model.SkippedItem{
			ItemID:   sk.Item.ID,
			ItemName: sk.Item.Definition.Name,
			Reason:   sk.Reason.String(),
		})
	}
	return out
}
