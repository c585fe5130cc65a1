package service

import (
	"context"
	"testing"
	"time"

	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func invItem(id string, r model.Rarity, base int64, protected bool, acquired time.Time) model.InventoryItem {
	return model.InventoryItem{
		ID:         id,
		UserID:     "u1",
		Definition: model.ItemDefinition{ID: "def-" + id, Name: "Item " + id, Rarity: r, BaseValue: base},
		AcquiredAt: acquired,
		Protected:  protected,
	}
}

func ids(items []model.InventoryItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestSelect_ExcludesProtected(t *testing.T) {
	p := SelectionPolicy{MaxRarity: model.RarityMythic}
	sel := p.Select([]model.InventoryItem{
		invItem("a", model.RarityCommon, 10, false, t0),
		invItem("b", model.RarityRare, 100, true, t0.Add(time.Second)),
	})

	assert.Equal(t, []string{"a"}, ids(sel.Eligible))
	require.Len(t, sel.Skipped, 1)
	assert.Equal(t, "b", sel.Skipped[0].Item.ID)
	assert.Equal(t, SkipProtected, sel.Skipped[0].Reason)
}

func TestSelect_RarityCeiling(t *testing.T) {
	p := SelectionPolicy{MaxRarity: model.RarityRare, MaxItemValue: 50}
	sel := p.Select([]model.InventoryItem{
		invItem("common", model.RarityCommon, 10, false, t0),
		invItem("epic", model.RarityEpic, 20, false, t0.Add(time.Second)),
		invItem("pricey", model.RarityUncommon, 51, false, t0.Add(2*time.Second)),
		invItem("rare", model.RarityRare, 50, false, t0.Add(3*time.Second)),
	})

	// The value ceiling is left to Price.
	assert.Equal(t, []string{"common", "pricey", "rare"}, ids(sel.Eligible))
	require.Len(t, sel.Skipped, 1)
	assert.Equal(t, SkipRarityCeiling, sel.Skipped[0].Reason)
}

func TestPrice_ValueCeilingOnSalePrice(t *testing.T) {
	resolver, err := pricing.NewResolver(map[string]float64{"uncommon": 2, "rare": 0.5}, nil, zerolog.Nop())
	require.NoError(t, err)
	snap := resolver.Snapshot(context.Background())

	p := SelectionPolicy{MaxRarity: model.RarityMythic, MaxItemValue: 50}
	priced, skipped := p.Price(snap, []model.InventoryItem{
		invItem("boosted", model.RarityUncommon, 30, false, t0),
		invItem("discounted", model.RarityRare, 80, false, t0.Add(time.Second)),
		invItem("edge", model.RarityCommon, 50, false, t0.Add(2*time.Second)),
	})

	require.Len(t, priced, 2)
	assert.Equal(t, "discounted", priced[0].Item.ID)
	assert.Equal(t, int64(40), priced[0].EstimatedPrice)
	assert.Equal(t, "edge", priced[1].Item.ID)
	require.Len(t, skipped, 1)
	assert.Equal(t, "boosted", skipped[0].ItemID)
	assert.Equal(t, "value_ceiling", skipped[0].Reason)
}

func TestPrice_NoValueCeilingWhenZero(t *testing.T) {
	resolver, err := pricing.NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)

	p := SelectionPolicy{MaxRarity: model.RarityMythic}
	priced, skipped := p.Price(resolver.Snapshot(context.Background()),
		[]model.InventoryItem{invItem("a", model.RarityMythic, 1_000_000, false, t0)})
	require.Len(t, priced, 1)
	assert.Equal(t, int64(1_000_000), priced[0].EstimatedPrice)
	assert.Empty(t, skipped)
}

func TestPrice_UnresolvableItemSkipped(t *testing.T) {
	resolver, err := pricing.NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)

	ghost := invItem("ghost", model.RarityCommon, 5, false, t0)
	ghost.Definition.ID = ""
	priced, skipped := SelectionPolicy{}.Price(resolver.Snapshot(context.Background()), []model.InventoryItem{ghost})
	assert.Empty(t, priced)
	require.Len(t, skipped, 1)
	assert.Equal(t, "pricing_unavailable", skipped[0].Reason)
}

func TestSelect_OrdersByAcquisitionThenID(t *testing.T) {
	p := SelectionPolicy{MaxRarity: model.RarityMythic}
	input := []model.InventoryItem{
		invItem("c", model.RarityCommon, 1, false, t0.Add(time.Minute)),
		invItem("b", model.RarityCommon, 1, false, t0),
		invItem("a", model.RarityCommon, 1, false, t0),
	}
	sel := p.Select(input)

	assert.Equal(t, []string{"a", "b", "c"}, ids(sel.Eligible))
	// input untouched
	assert.Equal(t, "c", input[0].ID)
}

func TestSelect_IgnoresSoldItems(t *testing.T) {
	sold := invItem("sold", model.RarityCommon, 1, false, t0)
	at := t0.Add(time.Hour)
	sold.SoldAt = &at

	sel := SelectionPolicy{MaxRarity: model.RarityMythic}.Select([]model.InventoryItem{sold})
	assert.Empty(t, sel.Eligible)
	assert.Empty(t, sel.Skipped)
}
