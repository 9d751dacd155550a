package cart

import "errors"

var (
	// ErrInvalidCheckoutState is returned when checkout is attempted without an identity or with an
	// empty cart. No request is sent.
	ErrInvalidCheckoutState = errors.New("cart: invalid checkout state")
	// ErrCheckoutBlocked is returned after a failed checkout until AcknowledgeCheckoutFailure is called.
	ErrCheckoutBlocked = errors.New("cart: checkout blocked by an unacknowledged failure")
	// ErrPersist wraps storage failures. The in-memory change is kept.
	ErrPersist = errors.New("cart: failed to persist cart")
	// ErrCorruptCart is returned by Load when the stored record is not a JSON line sequence.
	ErrCorruptCart = errors.New("cart: stored cart is unreadable")

	ErrInvalidProduct = errors.New("cart: invalid product")
	ErrInvalidPrice   = errors.New("cart: invalid price")
)
