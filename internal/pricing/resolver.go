// Package pricing turns inventory items into sale values.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"packvault-autosell-api/internal/model"

	"github.com/rs/zerolog"
)

// ErrPricingUnavailable means the item cannot be priced right now.
var ErrPricingUnavailable = errors.New("pricing unavailable")

// maxPrice keeps float results well inside int64.
const maxPrice = float64(1 << 53)

// Resolver prices items as base value x rarity multiplier x modifier.
type Resolver struct {
	multipliers map[model.Rarity]float64
	source      ModifierSource
	log         zerolog.Logger
}

// NewResolver creates a resolver. Rarities missing from multipliers use 1.0.
// A nil source means neutral modifiers.
func NewResolver(multipliers map[string]float64, source ModifierSource, log zerolog.Logger) (*Resolver, error) {
	parsed := make(map[model.Rarity]float64, len(multipliers))
	for name, v := range multipliers {
		r, err := model.ParseRarity(name)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative multiplier for %s", name)
		}
		parsed[r] = v
	}
	return &Resolver{
		multipliers: parsed,
		source:      source,
		log:         log.With().Str("component", "pricing").Logger(),
	}, nil
}

// Snapshot freezes the current modifiers for one operation. A failing
// source degrades to neutral modifiers rather than blocking sales.
func (r *Resolver) Snapshot(ctx context.Context) *Snapshot {
	mods := Neutral()
	if r.source != nil {
		m, err := r.source.Modifiers(ctx)
		if err != nil {
			r.log.Warn().Err(err).Msg("Modifier source failed, using neutral modifiers")
		} else {
			mods = m
		}
	}
	return &Snapshot{
		Version:     mods.Version,
		multipliers: r.multipliers,
		modifiers:   mods,
	}
}

// Snapshot is an immutable pricing view. Identical inputs give identical prices.
type Snapshot struct {
	Version     string
	multipliers map[model.Rarity]float64
	modifiers   Modifiers
}

// PriceOf returns the sale value of an item in whole credits.
func (s *Snapshot) PriceOf(item model.InventoryItem) (int64, error) {
	def := item.Definition
	if def.ID == "" || def.Name == "" || !def.Rarity.Valid() || def.BaseValue < 0 {
		return 0, fmt.Errorf("%w: item %s has no resolvable definition", ErrPricingUnavailable, item.ID)
	}

	mult, ok := s.multipliers[def.Rarity]
	if !ok {
		mult = 1
	}
	v := float64(def.BaseValue) * mult * s.modifiers.For(def.Rarity)
	if math.IsNaN(v) || v > maxPrice {
		return 0, fmt.Errorf("%w: item %s price out of range", ErrPricingUnavailable, item.ID)
	}
	if v <= 0 {
		return 0, nil
	}
	return int64(math.Floor(v + 1e-9)), nil
}
