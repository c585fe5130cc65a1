package handler

import (
	"net/http"

	"packvault-autosell-api/internal/service"
	"packvault-autosell-api/pkg/response"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	inventoryService *service.InventoryService
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventoryService *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
	}
}

// GetInventory handles GET /api/v1/inventory
func (h *InventoryHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	view, err := h.inventoryService.GetInventory(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.OK(w, view)
}
