package pricing

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"time"

	"packvault-autosell-api/internal/cache"
	"packvault-autosell-api/internal/model"

	"github.com/vmihailenco/msgpack/v5"
)

// Modifiers is a point-in-time scarcity/demand snapshot keyed by rarity name.
type Modifiers struct {
	Version  string             `msgpack:"version"`
	ByRarity map[string]float64 `msgpack:"by_rarity"`
	LoadedAt time.Time          `msgpack:"loaded_at"`
}

// Neutral returns a snapshot that leaves every price unchanged.
func Neutral() Modifiers {
	return Modifiers{Version: "neutral", ByRarity: map[string]float64{}}
}

// For returns the modifier for a rarity, 1.0 when none is set.
func (m Modifiers) For(r model.Rarity) float64 {
	v, ok := m.ByRarity[r.String()]
	if !ok || v <= 0 {
		return 1
	}
	return v
}

// ModifierSource provides the current modifier snapshot.
type ModifierSource interface {
	Modifiers(ctx context.Context) (Modifiers, error)
}

// StaticSource serves modifiers fixed at startup.
type StaticSource struct {
	m Modifiers
}

// NewStaticSource validates a rarity-name to modifier table.
func NewStaticSource(byRarity map[string]float64) (*StaticSource, error) {
	m := Modifiers{ByRarity: make(map[string]float64, len(byRarity))}
	keys := make([]string, 0, len(byRarity))
	for name, v := range byRarity {
		r, err := model.ParseRarity(name)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative modifier for %s", name)
		}
		m.ByRarity[r.String()] = v
		keys = append(keys, fmt.Sprintf("%s=%g", r, v))
	}
	if len(keys) == 0 {
		return &StaticSource{m: Neutral()}, nil
	}
	sort.Strings(keys)
	m.Version = fmt.Sprintf("static:%08x", crc32.ChecksumIEEE([]byte(strings.Join(keys, ","))))
	return &StaticSource{m: m}, nil
}

// Modifiers returns the fixed snapshot.
func (s *StaticSource) Modifiers(ctx context.Context) (Modifiers, error) {
	return s.m, nil
}

// SupplyCounter reports the live supply of unsold items per rarity.
type SupplyCounter interface {
	CountActiveByRarity(ctx context.Context) (map[model.Rarity]int64, error)
}

// SupplySource prices scarce rarities up: modifier = 1 + weight*(1-share),
// where share is the rarity's fraction of all unsold items.
type SupplySource struct {
	counter SupplyCounter
	weight  float64
	clock   func() time.Time
}

// NewSupplySource creates a supply-driven modifier source.
func NewSupplySource(counter SupplyCounter, weight float64, clock func() time.Time) *SupplySource {
	if clock == nil {
		clock = time.Now
	}
	return &SupplySource{counter: counter, weight: weight, clock: clock}
}

// Modifiers computes a fresh snapshot from the store.
func (s *SupplySource) Modifiers(ctx context.Context) (Modifiers, error) {
	if s.weight == 0 {
		return Neutral(), nil
	}
	counts, err := s.counter.CountActiveByRarity(ctx)
	if err != nil {
		return Modifiers{}, fmt.Errorf("failed to load supply: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	now := s.clock()
	m := Modifiers{
		Version:  fmt.Sprintf("supply:%d", now.UnixMilli()),
		ByRarity: make(map[string]float64, len(model.Rarities)),
		LoadedAt: now,
	}
	if total == 0 {
		return m, nil
	}
	for _, r := range model.Rarities {
		share := float64(counts[r]) / float64(total)
		m.ByRarity[r.String()] = 1 + s.weight*(1-share)
	}
	return m, nil
}

// CachedSource keeps a source's snapshot in a Cache for ttl, so every
// request inside that window prices against the same version.
type CachedSource struct {
	src   ModifierSource
	cache cache.Cache
	key   string
	ttl   time.Duration
}

// NewCachedSource wraps src with the given cache.
func NewCachedSource(src ModifierSource, c cache.Cache, key string, ttl time.Duration) *CachedSource {
	if key == "" {
		key = "pricing:modifiers"
	}
	return &CachedSource{src: src, cache: c, key: key, ttl: ttl}
}

// Modifiers returns the cached snapshot, loading it on a miss.
func (c *CachedSource) Modifiers(ctx context.Context) (Modifiers, error) {
	data, err := c.cache.GetOrSet(ctx, c.key, c.ttl, func() ([]byte, error) {
		m, err := c.src.Modifiers(ctx)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(m)
	})
	if err != nil {
		return Modifiers{}, err
	}

	var m Modifiers
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Modifiers{}, fmt.Errorf("failed to decode modifiers: %w", err)
	}
	return m, nil
}
