package service

import (
	"context"

	"packvault-autosell-api/internal/model"
)

// MaxStatsDays bounds the stats look-back window.
const MaxStatsDays = 365

// StatsForPeriod aggregates the user's auto-sell activity over the last days.
// Sales and credits come from the sale ledger; processed, skipped and error
// counts come from persisted run summaries plus single sales.
func (s *AutoSellService) StatsForPeriod(ctx context.Context, userID string, days int, includeHistory bool) (*model.PeriodStats, error) {
	if userID == "" {
		return nil, invalidRequest("user id is required")
	}
	if days < 1 || days > MaxStatsDays {
		return nil, invalidRequest("days must be between 1 and %d", MaxStatsDays)
	}

	to := s.now()
	from := to.AddDate(0, 0, -days)

	sales, err := s.ledger.SaleTotals(ctx, userID, from)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}
	runs, err := s.ledger.RunTotals(ctx, userID, from)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}

	stats := &model.PeriodStats{
		UserID:          userID,
		Days:            days,
		From:            from,
		To:              to,
		Runs:            runs.Runs,
		TotalProcessed:  runs.TotalProcessed + sales.SingleSales,
		SuccessfulSales: sales.Sales,
		SingleSales:     sales.SingleSales,
		BatchSales:      sales.BatchSales,
		SkippedItems:    runs.SkippedItems,
		Errors:          runs.Errors,
		TotalCredits:    sales.TotalCredits,
	}

	if includeHistory {
		history, err := s.ledger.ListSales(ctx, userID, from, s.cfg.HistoryLimit)
		if err != nil {
			return nil, newError(KindPersistenceFailure, "", err)
		}
		stats.History = history
	}
	return stats, nil
}
