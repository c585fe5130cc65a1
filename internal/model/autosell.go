package model

import "time"

// ItemStatus is the outcome of one item inside a sale attempt.
type ItemStatus string

const (
	ItemSold    ItemStatus = "sold"
	ItemSkipped ItemStatus = "skipped"
	ItemFailed  ItemStatus = "failed"
)

// PricedItem is an eligible item with the price estimated at selection time.
type PricedItem struct {
	Item           InventoryItem `json:"item"`
	EstimatedPrice int64         `json:"estimated_price"`
}

// SkippedItem is an item left out of a run, with the reason.
type SkippedItem struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Reason   string `json:"reason"`
}

// ItemResult reports what happened to one item during a sale attempt.
type ItemResult struct {
	ItemID         string     `json:"item_id"`
	ItemName       string     `json:"item_name"`
	Status         ItemStatus `json:"status"`
	EstimatedPrice int64      `json:"estimated_price"`
	Price          int64      `json:"price"`
	PriceChanged   bool       `json:"price_changed"`
	Reason         string     `json:"reason,omitempty"`
}

// Preview lists what a batch run would sell right now. It is advisory:
// prices are re-evaluated at commit time.
type Preview struct {
	UserID                string        `json:"user_id"`
	Candidates            []PricedItem  `json:"candidates"`
	Skipped               []SkippedItem `json:"skipped"`
	TotalEstimatedCredits int64         `json:"total_estimated_credits"`
	PricingVersion        string        `json:"pricing_version"`
	Advisory              bool          `json:"advisory"`
	GeneratedAt           time.Time     `json:"generated_at"`
}

// AutoSellRunStats summarizes one batch run.
type AutoSellRunStats struct {
	RunID           string        `json:"run_id"`
	TotalProcessed  int           `json:"total_processed"`
	SuccessfulSales int           `json:"successful_sales"`
	SkippedItems    int           `json:"skipped_items"`
	Errors          int           `json:"errors"`
	TotalCredits    int64         `json:"total_credits"`
	Remaining       int           `json:"remaining"`
	PricingVersion  string        `json:"pricing_version"`
	Results         []ItemResult  `json:"results"`
	Skipped         []SkippedItem `json:"skipped"`
}

// SingleSaleResult is the outcome of selling one item on request.
type SingleSaleResult struct {
	ItemID          string `json:"item_id"`
	ItemName        string `json:"item_name"`
	Price           int64  `json:"price"`
	CreditsReceived int64  `json:"credits_received"`
	PriceChanged    bool   `json:"price_changed"`
}

// PeriodStats aggregates auto-sell activity over [From, To].
type PeriodStats struct {
	UserID          string       `json:"user_id"`
	Days            int          `json:"days"`
	From            time.Time    `json:"from"`
	To              time.Time    `json:"to"`
	Runs            int          `json:"runs"`
	TotalProcessed  int          `json:"total_processed"`
	SuccessfulSales int          `json:"successful_sales"`
	SingleSales     int          `json:"single_sales"`
	BatchSales      int          `json:"batch_sales"`
	SkippedItems    int          `json:"skipped_items"`
	Errors          int          `json:"errors"`
	TotalCredits    int64        `json:"total_credits"`
	History         []SaleRecord `json:"history"` // nil unless requested
}
