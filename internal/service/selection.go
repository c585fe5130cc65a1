package service

import (
	"sort"

	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"
)

// SkipReason explains why an item was left out of a batch.
type SkipReason int

const (
	SkipProtected SkipReason = iota + 1
	SkipRarityCeiling
	SkipValueCeiling
	SkipPricingUnavailable
)

func (r SkipReason) String() string {
	switch r {
	case SkipProtected:
		return "protected"
	case SkipRarityCeiling:
		return "rarity_ceiling"
	case SkipValueCeiling:
		return "value_ceiling"
	case SkipPricingUnavailable:
		return "pricing_unavailable"
	default:
		return "unknown"
	}
}

// SelectionPolicy decides which items a batch may sell.
type SelectionPolicy struct {
	MaxRarity    model.Rarity
	MaxItemValue int64 // ceiling on the resolved sale price; 0 means no ceiling
}

// Skip is an item excluded by the policy.
type Skip struct {
	Item   model.InventoryItem
	Reason SkipReason
}

// Selection is the policy outcome, both lists in acquisition order.
type Selection struct {
	Eligible []model.InventoryItem
	Skipped  []Skip
}

// Select partitions items into eligible and skipped on protection and rarity.
// The value ceiling needs a price and is applied by Price. It does not mutate
// its input.
func (p SelectionPolicy) Select(items []model.InventoryItem) Selection {
	sorted := make([]model.InventoryItem, 0, len(items))
	for _, it := range items {
		if it.Active() {
			sorted = append(sorted, it)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		return a.ID < b.ID
	})

	sel := Selection{Eligible: []model.InventoryItem{}, Skipped: []Skip{}}
	for _, it := range sorted {
		if reason, skip := p.reject(it); skip {
			sel.Skipped = append(sel.Skipped, Skip{Item: it, Reason: reason})
			continue
		}
		sel.Eligible = append(sel.Eligible, it)
	}
	return sel
}

func (p SelectionPolicy) reject(it model.InventoryItem) (SkipReason, bool) {
	if it.Protected {
		return SkipProtected, true
	}
	// Unknown rarities are left for pricing to reject.
	if p.MaxRarity.Valid() && it.Definition.Rarity.Valid() && it.Definition.Rarity > p.MaxRarity {
		return SkipRarityCeiling, true
	}
	return 0, false
}

// Price resolves the sale price of each eligible item against snap. Items
// that cannot be priced, or whose price is above MaxItemValue, are skipped.
func (p SelectionPolicy) Price(snap *pricing.Snapshot, items []model.InventoryItem) ([]model.PricedItem, []model.SkippedItem) {
	priced := make([]model.PricedItem, 0, len(items))
	var skipped []model.SkippedItem
	for _, it := range items {
		price, err := snap.PriceOf(it)
		reason := SkipReason(0)
		switch {
		case err != nil:
			reason = SkipPricingUnavailable
		case p.MaxItemValue > 0 && price > p.MaxItemValue:
			reason = SkipValueCeiling
		}
		if reason != 0 {
			skipped = append(skipped, model.SkippedItem{
				ItemID:   it.ID,
				ItemName: it.Definition.Name,
				Reason:   reason.String(),
			})
			continue
		}
		priced = append(priced, model.PricedItem{Item: it, EstimatedPrice: price})
	}
	return priced, skipped
}
