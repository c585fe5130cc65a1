package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can map them to responses.
type ErrorKind int

const (
	KindItemNotFound ErrorKind = iota + 1
	KindItemNotOwned
	KindItemProtected
	KindPricingUnavailable
	KindPersistenceFailure
	KindInvalidRequest
	KindOperationInProgress
)

func (k ErrorKind) String() string {
	switch k {
	case KindItemNotFound:
		return "item_not_found"
	case KindItemNotOwned:
		return "item_not_owned"
	case KindItemProtected:
		return "item_protected"
	case KindPricingUnavailable:
		return "pricing_unavailable"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindInvalidRequest:
		return "invalid_request"
	case KindOperationInProgress:
		return "operation_in_progress"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrItemNotFound        = &Error{Kind: KindItemNotFound}
	ErrItemNotOwned        = &Error{Kind: KindItemNotOwned}
	ErrItemProtected       = &Error{Kind: KindItemProtected}
	ErrPricingUnavailable  = &Error{Kind: KindPricingUnavailable}
	ErrPersistenceFailure  = &Error{Kind: KindPersistenceFailure}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrOperationInProgress = &Error{Kind: KindOperationInProgress}
)

// Error is an engine failure with its kind and the item it concerns.
type Error struct {
	Kind   ErrorKind
	ItemID string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.ItemID != "" {
		msg = fmt.Sprintf("%s: item %s", msg, e.ItemID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, itemID string, err error) *Error {
	return &Error{Kind: kind, ItemID: itemID, Err: err}
}

func invalidRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidRequest, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or PersistenceFailure for unclassified errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistenceFailure
}
