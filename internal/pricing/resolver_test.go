package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"packvault-autosell-api/internal/cache"
	"packvault-autosell-api/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, r model.Rarity, base int64) model.InventoryItem {
	return model.InventoryItem{
		ID:     id,
		UserID: "u1",
		Definition: model.ItemDefinition{
			ID: "def-" + id, Name: "Item " + id, Rarity: r, BaseValue: base,
		},
	}
}

type failingSource struct{ calls int }

func (f *failingSource) Modifiers(ctx context.Context) (Modifiers, error) {
	f.calls++
	return Modifiers{}, errors.New("source down")
}

type fakeCounter struct {
	counts map[model.Rarity]int64
	calls  int
}

func (f *fakeCounter) CountActiveByRarity(ctx context.Context) (map[model.Rarity]int64, error) {
	f.calls++
	return f.counts, nil
}

func TestSnapshot_DefaultsToBaseValue(t *testing.T) {
	r, err := NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)

	snap := r.Snapshot(context.Background())
	assert.Equal(t, "neutral", snap.Version)

	price, err := snap.PriceOf(item("a", model.RarityCommon, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(10), price)

	price, err = snap.PriceOf(item("b", model.RarityRare, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(100), price)
}

func TestSnapshot_AppliesMultiplierAndModifierWithFloor(t *testing.T) {
	src, err := NewStaticSource(map[string]float64{"rare": 1.5})
	require.NoError(t, err)
	r, err := NewResolver(map[string]float64{"rare": 1.1, "common": 0.5}, src, zerolog.Nop())
	require.NoError(t, err)

	snap := r.Snapshot(context.Background())
	assert.Contains(t, snap.Version, "static:")

	// 33 * 1.1 * 1.5 = 54.45
	price, err := snap.PriceOf(item("a", model.RarityRare, 33))
	require.NoError(t, err)
	assert.Equal(t, int64(54), price)

	// 7 * 0.5 = 3.5
	price, err = snap.PriceOf(item("b", model.RarityCommon, 7))
	require.NoError(t, err)
	assert.Equal(t, int64(3), price)
}

func TestSnapshot_UnresolvableDefinition(t *testing.T) {
	r, err := NewResolver(nil, nil, zerolog.Nop())
	require.NoError(t, err)
	snap := r.Snapshot(context.Background())

	dangling := item("a", model.RarityCommon, 10)
	dangling.Definition.ID = ""
	_, err = snap.PriceOf(dangling)
	assert.ErrorIs(t, err, ErrPricingUnavailable)

	unknown := item("b", model.RarityUnknown, 10)
	_, err = snap.PriceOf(unknown)
	assert.ErrorIs(t, err, ErrPricingUnavailable)
}

func TestSnapshot_ZeroValueIsNeverNegative(t *testing.T) {
	r, err := NewResolver(map[string]float64{"common": 0}, nil, zerolog.Nop())
	require.NoError(t, err)

	price, err := r.Snapshot(context.Background()).PriceOf(item("a", model.RarityCommon, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(0), price)
}

func TestResolver_FailingSourceFallsBackToNeutral(t *testing.T) {
	src := &failingSource{}
	r, err := NewResolver(nil, src, zerolog.Nop())
	require.NoError(t, err)

	snap := r.Snapshot(context.Background())
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, "neutral", snap.Version)

	price, err := snap.PriceOf(item("a", model.RarityEpic, 40))
	require.NoError(t, err)
	assert.Equal(t, int64(40), price)
}

func TestNewResolver_RejectsUnknownRarity(t *testing.T) {
	_, err := NewResolver(map[string]float64{"shiny": 2}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewStaticSource(map[string]float64{"common": -1})
	assert.Error(t, err)
}

func TestSupplySource_ScarceRaritiesPriceHigher(t *testing.T) {
	counter := &fakeCounter{counts: map[model.Rarity]int64{
		model.RarityCommon: 75,
		model.RarityRare:   25,
	}}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	src := NewSupplySource(counter, 1, func() time.Time { return now })

	m, err := src.Modifiers(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.25, m.For(model.RarityCommon), 1e-9)
	assert.InDelta(t, 1.75, m.For(model.RarityRare), 1e-9)
	assert.InDelta(t, 2.0, m.For(model.RarityMythic), 1e-9)
	assert.Equal(t, "supply:1767323045000", m.Version)
}

func TestSupplySource_ZeroWeightIsNeutral(t *testing.T) {
	counter := &fakeCounter{}
	m, err := NewSupplySource(counter, 0, nil).Modifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "neutral", m.Version)
	assert.Equal(t, 0, counter.calls)
}

func TestCachedSource_ReusesSnapshotUntilExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewMemoryCache(cache.MemoryConfig{
		DefaultTTL: time.Minute,
		Clock:      func() time.Time { return now },
	})
	counter := &fakeCounter{counts: map[model.Rarity]int64{model.RarityCommon: 1}}
	src := NewCachedSource(NewSupplySource(counter, 1, func() time.Time { return now }), c, "", time.Minute)

	first, err := src.Modifiers(context.Background())
	require.NoError(t, err)
	second, err := src.Modifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, first.Version, second.Version)
	assert.InDelta(t, first.For(model.RarityRare), second.For(model.RarityRare), 1e-9)

	now = now.Add(time.Minute)
	_, err = src.Modifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counter.calls)
}

func TestCachedSource_ErrorIsNotCached(t *testing.T) {
	c := cache.NewMemoryCache(cache.MemoryConfig{})
	failing := &failingSource{}
	src := NewCachedSource(failing, c, "mods", time.Minute)

	_, err := src.Modifiers(context.Background())
	assert.Error(t, err)
	_, err = src.Modifiers(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, failing.calls)
}
