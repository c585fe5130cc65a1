package service

import (
	"context"
	"errors"

	"packvault-autosell-api/internal/metrics"
	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
	"packvault-autosell-api/internal/repository"

	"github.com/rs/zerolog"
)

// SaleOutcome aggregates the executor results of one call.
type SaleOutcome struct {
	Results     []model.ItemResult
	Records     []model.SaleRecord
	Sold        int
	Skipped     int
	Failed      int
	CreditDelta int64
}

// SaleExecutor is the only writer of sales. Each item is committed in its
// own transaction, so one failure never affects the others.
type SaleExecutor struct {
	ledger repository.LedgerRepository
	audit  AuditSink
	log    zerolog.Logger
}

// NewSaleExecutor creates a sale executor. audit may be nil.
func NewSaleExecutor(ledger repository.LedgerRepository, audit AuditSink, log zerolog.Logger) *SaleExecutor {
	return &SaleExecutor{
		ledger: ledger,
		audit:  audit,
		log:    log.With().Str("component", "sale_executor").Logger(),
	}
}

// Sell commits candidates in order and reports per-item results.
func (e *SaleExecutor) Sell(ctx context.Context, userID string, candidates []model.PricedItem, mode model.TriggerMode, snap *pricing.Snapshot, runID string) SaleOutcome {
	out := SaleOutcome{
		Results: make([]model.ItemResult, 0, len(candidates)),
		Records: []model.SaleRecord{},
	}
	for _, c := range candidates {
		res, rec, _ := e.SellOne(ctx, userID, c, mode, snap, runID)
		out.Results = append(out.Results, res)
		switch res.Status {
		case model.ItemSold:
			out.Sold++
			out.CreditDelta += rec.Credits
			out.Records = append(out.Records, *rec)
		case model.ItemSkipped:
			out.Skipped++
		default:
			out.Failed++
		}
	}
	return out
}

// SellOne commits a single candidate. The price is recomputed from the row
// read inside the transaction; EstimatedPrice is kept only for drift reporting.
func (e *SaleExecutor) SellOne(ctx context.Context, userID string, c model.PricedItem, mode model.TriggerMode, snap *pricing.Snapshot, runID string) (model.ItemResult, *model.SaleRecord, error) {
	res := model.ItemResult{
		ItemID:         c.Item.ID,
		ItemName:       c.Item.Definition.Name,
		EstimatedPrice: c.EstimatedPrice,
	}

	rec, err := e.ledger.CommitSale(ctx, userID, c.Item.ID, mode, runID, func(item model.InventoryItem) (int64, error) {
		return snap.PriceOf(item)
	})
	if err != nil {
		serr := classifyCommitError(c.Item.ID, err)
		res.Reason = serr.Kind.String()
		res.Status = model.ItemSkipped
		if serr.Kind == KindPersistenceFailure {
			res.Status = model.ItemFailed
			e.log.Error().Err(err).Str("user_id", userID).Str("item_id", c.Item.ID).Str("mode", string(mode)).Msg("Sale commit failed")
		} else {
			e.log.Debug().Str("user_id", userID).Str("item_id", c.Item.ID).Str("reason", res.Reason).Msg("Item skipped at commit")
		}
		metrics.RecordItemOutcome(string(mode), string(res.Status), 0)
		return res, nil, serr
	}

	res.Status = model.ItemSold
	res.Price = rec.Price
	res.PriceChanged = rec.Price != c.EstimatedPrice
	metrics.RecordItemOutcome(string(mode), string(res.Status), rec.Credits)

	if e.audit != nil {
		event := AuditEvent{
			Action:  AuditItemSold,
			UserID:  userID,
			ItemID:  rec.ItemID,
			RunID:   runID,
			Mode:    string(mode),
			Credits: rec.Credits,
			At:      rec.CreatedAt,
		}
		if err := e.audit.Record(ctx, event); err != nil {
			e.log.Warn().Err(err).Str("item_id", rec.ItemID).Msg("Failed to record audit event")
		}
	}
	return res, rec, nil
}

func classifyCommitError(itemID string, err error) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(KindItemNotFound, itemID, err)
	case errors.Is(err, repository.ErrNotOwned):
		return newError(KindItemNotOwned, itemID, err)
	case errors.Is(err, repository.ErrProtected):
		return newError(KindItemProtected, itemID, err)
	case errors.Is(err, pricing.ErrPricingUnavailable):
		return newError(KindPricingUnavailable, itemID, err)
	default:
		return newError(KindPersistenceFailure, itemID, err)
	}
}
