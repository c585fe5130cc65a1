package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := newError(KindItemProtected, "item-1", nil)
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, ErrItemProtected)
	assert.NotErrorIs(t, wrapped, ErrItemNotOwned)
	assert.Equal(t, KindItemProtected, KindOf(wrapped))
	assert.Contains(t, err.Error(), "item-1")
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := newError(KindPersistenceFailure, "", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindPersistenceFailure, KindOf(errors.New("plain")))
}

func TestInvalidRequestMessage(t *testing.T) {
	err := invalidRequest("days must be between 1 and %d", 365)
	assert.Equal(t, "days must be between 1 and 365", err.Error())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
