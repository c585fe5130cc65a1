package model

import (
	"fmt"
	"time"
)

// TriggerMode tells whether a sale came from a single-item request or a batch run.
type TriggerMode string

const (
	TriggerSingle TriggerMode = "single"
	TriggerBatch  TriggerMode = "batch"
)

// Valid reports whether m is a known trigger mode.
func (m TriggerMode) Valid() bool {
	return m == TriggerSingle || m == TriggerBatch
}

// ParseTriggerMode converts a stored value into a TriggerMode.
func ParseTriggerMode(s string) (TriggerMode, error) {
	m := TriggerMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown trigger mode %q", s)
	}
	return m, nil
}

// SaleRecord is the immutable ledger row of one completed sale.
type SaleRecord struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	ItemID    string      `json:"item_id"`
	ItemName  string      `json:"item_name"`
	Rarity    Rarity      `json:"rarity"`
	Price     int64       `json:"price"`
	Credits   int64       `json:"credits"`
	Mode      TriggerMode `json:"mode"`
	RunID     string      `json:"run_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// RunRecord is the persisted summary of one batch run.
type RunRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TotalProcessed  int       `json:"total_processed"`
	SuccessfulSales int       `json:"successful_sales"`
	SkippedItems    int       `json:"skipped_items"`
	Errors          int       `json:"errors"`
	TotalCredits    int64     `json:"total_credits"`
	Remaining       int       `json:"remaining"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// RunTotals aggregates run records over a period.
type RunTotals struct {
	Runs           int
	TotalProcessed int
	SkippedItems   int
	Errors         int
}

// SaleTotals aggregates sale records over a period.
type SaleTotals struct {
	Sales        int
	SingleSales  int
	BatchSales   int
	TotalCredits int64
}
