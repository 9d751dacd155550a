package order

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStatus        = errors.New("order: invalid status")
	ErrInvalidPriority      = errors.New("order: invalid priority")
	ErrIllegalTransition    = errors.New("order: illegal status transition")
	ErrMissingFailureReason = errors.New("order: failed delivery requires a failure reason")
	ErrDriverRequired       = errors.New("order: status requires an assigned driver")
	ErrInvalidLocation      = errors.New("order: invalid location")
	ErrNotFound             = errors.New("order: not found")

	// ErrAccessDenied matches both the local ownership guard and a 403 from the backend.
	ErrAccessDenied = errors.New("order: access denied")
	// ErrUnauthorized is the local guard: the request was never sent.
	ErrUnauthorized = fmt.Errorf("%w: identity may not read another user's records", ErrAccessDenied)
)
