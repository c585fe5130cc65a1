package handler

import (
	"errors"
	"net/http"

	"packvault-autosell-api/internal/middleware"
	"packvault-autosell-api/internal/service"
	"packvault-autosell-api/pkg/apierror"
	"packvault-autosell-api/pkg/response"
)

// toAPIError maps engine errors onto HTTP errors.
func toAPIError(err error) *apierror.Error {
	var serr *service.Error
	if !errors.As(err, &serr) {
		return apierror.InternalError("")
	}

	switch serr.Kind {
	case service.KindItemNotFound:
		return apierror.NotFound("Item not found").WithCode("ITEM_NOT_FOUND")
	case service.KindItemNotOwned:
		return apierror.Conflict("Item is no longer in your inventory").WithCode("ITEM_NOT_OWNED")
	case service.KindItemProtected:
		return apierror.Conflict("Item is protected from auto-sell").WithCode("ITEM_PROTECTED")
	case service.KindPricingUnavailable:
		return apierror.UnprocessableEntity("Item cannot be priced right now").WithCode("PRICING_UNAVAILABLE")
	case service.KindInvalidRequest:
		return apierror.BadRequest(serr.Error()).WithCode("INVALID_REQUEST")
	case service.KindOperationInProgress:
		return apierror.Conflict("Another auto-sell operation is in progress").WithCode("OPERATION_IN_PROGRESS")
	default:
		return apierror.InternalError("Failed to persist auto-sell changes").WithCode("PERSISTENCE_FAILURE")
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	response.Error(w, toAPIError(err))
}

// requireUser returns the authenticated user, writing 401 when there is none.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Error(w, apierror.Unauthorized("A user identity is required. Use X-Token, or X-User-ID with an API key."))
		return "", false
	}
	return userID, true
}
