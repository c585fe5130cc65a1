package model

import (
	"fmt"
	"strings"
	"time"
)

// Rarity is the rarity tier of an item definition. Tiers are ordered.
type Rarity int

const (
	RarityUnknown Rarity = iota
	RarityCommon
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
	RarityMythic
)

var rarityNames = [...]string{
	RarityUnknown:   "unknown",
	RarityCommon:    "common",
	RarityUncommon:  "uncommon",
	RarityRare:      "rare",
	RarityEpic:      "epic",
	RarityLegendary: "legendary",
	RarityMythic:    "mythic",
}

// Rarities lists every known tier in ascending order.
var Rarities = []Rarity{RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic}

func (r Rarity) String() string {
	if r < 0 || int(r) >= len(rarityNames) {
		return rarityNames[RarityUnknown]
	}
	return rarityNames[r]
}

// Valid reports whether r is a known tier.
func (r Rarity) Valid() bool {
	return r >= RarityCommon && r <= RarityMythic
}

// ParseRarity converts a tier name into a Rarity.
func ParseRarity(s string) (Rarity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Rarities {
		if rarityNames[r] == name {
			return r, nil
		}
	}
	return RarityUnknown, fmt.Errorf("unknown rarity %q", s)
}

// MarshalText encodes the rarity by name.
func (r Rarity) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a rarity name.
func (r *Rarity) UnmarshalText(text []byte) error {
	parsed, err := ParseRarity(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ItemDefinition describes a collectible that packs can drop.
type ItemDefinition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Rarity    Rarity `json:"rarity"`
	BaseValue int64  `json:"base_value"`
}

// InventoryItem is one unit of an item definition owned by a user.
type InventoryItem struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	Definition          ItemDefinition `json:"definition"`
	AcquiredAt          time.Time      `json:"acquired_at"`
	Protected           bool           `json:"protected"`
	ProtectionReason    string         `json:"protection_reason,omitempty"`
	ProtectionUpdatedAt *time.Time     `json:"protection_updated_at,omitempty"`
	SoldAt              *time.Time     `json:"sold_at,omitempty"`
}

// Active reports whether the item is still in its owner's inventory.
func (i *InventoryItem) Active() bool {
	return i.SoldAt == nil
}

// ProtectionState is the auto-sell opt-out state of one item.
type ProtectionState struct {
	UserID    string     `json:"user_id"`
	ItemID    string     `json:"item_id"`
	Protected bool       `json:"protected"`
	Reason    string     `json:"reason,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Changed   bool       `json:"changed"`
}
