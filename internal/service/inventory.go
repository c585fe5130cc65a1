package service

import (
	"context"
	"fmt"

	"packvault-autosell-api/internal/model"
	"packvault-autosell-api/internal/repository"
	"packvault-autosell-api/pkg/uid"
)

// InventoryView is a user's unsold items with their current balance.
type InventoryView struct {
	UserID  string                `json:"user_id"`
	Items   []model.InventoryItem `json:"items"`
	Credits int64                 `json:"credits"`
}

// InventoryService handles inventory reads and grants.
type InventoryService struct {
	inventoryRepo repository.InventoryRepository
	ledgerRepo    repository.LedgerRepository
}

// NewInventoryService creates a new inventory service.
// Returns nil if inventoryRepo is nil (required dependency).
func NewInventoryService(inventoryRepo repository.InventoryRepository, ledgerRepo repository.LedgerRepository) *InventoryService {
	if inventoryRepo == nil {
		return nil
	}
	return &InventoryService{
		inventoryRepo: inventoryRepo,
		ledgerRepo:    ledgerRepo,
	}
}

// GetInventory returns the unsold items and balance of a user.
func (s *InventoryService) GetInventory(ctx context.Context, userID string) (*InventoryView, error) {
	if userID == "" {
		return nil, invalidRequest("user id is required")
	}
	items, err := s.inventoryRepo.ListActiveItems(ctx, userID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}

	view := &InventoryView{UserID: userID, Items: items}
	if s.ledgerRepo != nil {
		if view.Credits, err = s.ledgerRepo.Balance(ctx, userID); err != nil {
			return nil, newError(KindPersistenceFailure, "", err)
		}
	}
	return view, nil
}

// GrantItem records the definition and adds one unit of it to the user's
// inventory. Pack opening and support tooling call this.
func (s *InventoryService) GrantItem(ctx context.Context, userID string, def model.ItemDefinition, protected bool, reason string) (*model.InventoryItem, error) {
	if userID == "" {
		return nil, invalidRequest("user id is required")
	}
	if def.ID == "" || def.Name == "" || !def.Rarity.Valid() || def.BaseValue < 0 {
		return nil, invalidRequest("invalid item definition %q", def.ID)
	}
	if len([]rune(reason)) > MaxProtectionReasonLength {
		return nil, invalidRequest("reason must be at most %d characters", MaxProtectionReasonLength)
	}

	if err := s.inventoryRepo.UpsertDefinition(ctx, def); err != nil {
		return nil, newError(KindPersistenceFailure, "", err)
	}
	item := model.InventoryItem{
		ID:               uid.New(),
		UserID:           userID,
		Definition:       def,
		Protected:        protected,
		ProtectionReason: reason,
	}
	if err := s.inventoryRepo.GrantItem(ctx, item); err != nil {
		return nil, newError(KindPersistenceFailure, item.ID, fmt.Errorf("grant: %w", err))
	}

	granted, err := s.inventoryRepo.GetItem(ctx, item.ID)
	if err != nil {
		return nil, newError(KindPersistenceFailure, item.ID, err)
	}
	return granted, nil
}
