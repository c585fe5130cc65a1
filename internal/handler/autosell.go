package handler

import (
	"net/http"
	"strconv"

	"packvault-autosell-api/internal/service"
	"packvault-autosell-api/pkg/apierror"
	"packvault-autosell-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AutoSellHandler handles auto-sell HTTP requests for the authenticated user.
type AutoSellHandler struct {
	autoSell *service.AutoSellService
	log      zerolog.Logger
}

// NewAutoSellHandler creates a new auto-sell handler.
func NewAutoSellHandler(autoSell *service.AutoSellService, log zerolog.Logger) *AutoSellHandler {
	return &AutoSellHandler{
		autoSell: autoSell,
		log:      log.With().Str("component", "autosell_handler").Logger(),
	}
}

// ProtectRequest is the body of POST /auto-sell/protect.
type ProtectRequest struct {
	ItemID  string  `json:"itemId"`
	Protect *bool   `json:"protect"`
	Reason  *string `json:"reason,omitempty"`
}

// Preview handles POST /api/v1/auto-sell/preview
func (h *AutoSellHandler) Preview(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	preview, err := h.autoSell.Preview(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, preview)
}

// Process handles POST /api/v1/auto-sell/process
func (h *AutoSellHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.autoSell.ProcessBatch(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, stats)
}

// SellItem handles POST /api/v1/auto-sell/item/{id}
func (h *AutoSellHandler) SellItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		response.Error(w, apierror.BadRequest("item id is required"))
		return
	}

	result, err := h.autoSell.SellSingle(r.Context(), userID, itemID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, result)
}

// Protect handles POST /api/v1/auto-sell/protect
func (h *AutoSellHandler) Protect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ProtectRequest
	if apiErr := response.DecodeJSON(w, r, &req); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	var details []apierror.FieldError
	if req.ItemID == "" {
		details = append(details, apierror.FieldError{Field: "itemId", Message: "is required"})
	}
	if req.Protect == nil {
		details = append(details, apierror.FieldError{Field: "protect", Message: "is required"})
	}
	if len(details) > 0 {
		response.Error(w, apierror.ValidationError("invalid protect request", details...))
		return
	}

	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}
	state, err := h.autoSell.ToggleProtection(r.Context(), userID, req.ItemID, *req.Protect, reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, state)
}

// Stats handles GET /api/v1/auto-sell/stats?days=N&includeHistory=bool
func (h *AutoSellHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	days := 7
	if v := query.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Error(w, apierror.ValidationError("invalid query",
				apierror.FieldError{Field: "days", Message: "must be an integer"}))
			return
		}
		days = n
	}
	includeHistory := false
	if v := query.Get("includeHistory"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(w, apierror.ValidationError("invalid query",
				apierror.FieldError{Field: "includeHistory", Message: "must be a boolean"}))
			return
		}
		includeHistory = b
	}

	stats, err := h.autoSell.StatsForPeriod(r.Context(), userID, days, includeHistory)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, stats)
}

func (h *AutoSellHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if service.KindOf(err) == service.KindPersistenceFailure {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Auto-sell request failed")
	}
	writeServiceError(w, err)
}
