package cart

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
)

// PickupStation replaces the profile address as shipping address when the customer collects the
// order.
type PickupStation struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	District string `json:"district"`
}

func (p PickupStation) Address() string {
	return fmt.Sprintf("Pickup: %s, %s, %s", p.Name, p.Location, p.District)
}

// Checkout turns the cart into a confirmed order and clears the cart once the order exists.
//
// A failed create leaves the cart untouched and blocks checkout until AcknowledgeCheckoutFailure.
// Every attempt for the same cart content carries the same idempotency key, so a retry after an
// ambiguous failure can be deduplicated by the backend.
//
// If the order was created but the stored cart could not be deleted, the order is returned together
// with an error wrapping ErrPersist.
func (e *Engine) Checkout(ctx context.Context, station *PickupStation) (*order.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failure != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckoutBlocked, e.failure)
	}
	if err := e.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	identity, ok := e.session.Identity()
	if !ok {
		return nil, fmt.Errorf("%w: not logged in", ErrInvalidCheckoutState)
	}
	if identity.ScopeKey() != e.scope {
		return nil, fmt.Errorf("%w: cart scope %q does not belong to the current identity", ErrInvalidCheckoutState, e.scope)
	}
	if len(e.lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidCheckoutState)
	}

	key, err := e.idempotencyKey()
	if err != nil {
		return nil, fmt.Errorf("cart: checkout: %w", err)
	}

	shipping := identity.Address
	if station != nil {
		shipping = station.Address()
	}

	req := order.CreateRequest{
		UserID:          identity.ID,
		Items:           snapshot(e.lines),
		TotalAmount:     e.lines.Total(),
		Status:          order.StatusConfirmed,
		Priority:        order.PriorityNormal,
		ShippingAddress: shipping,
		BillingAddress:  identity.Address,
		Key:             key,
	}

	var created order.Order
	if err := e.orders.Create(ctx, apiclient.ResourceOrders, req, &created); err != nil {
		e.failure = err
		log.Error().Err(err).Stringer("user_id", identity.ID).Str("idempotency_key", key).Msg("cart: checkout failed")
		return nil, fmt.Errorf("cart: checkout: %w", err)
	}

	log.Info().
		Stringer("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Stringer("user_id", identity.ID).
		Str("total", req.TotalAmount.String()).
		Msg("cart: checkout completed")

	e.attempt = nil
	if err := e.clear(ctx); err != nil {
		return &created, err
	}
	return &created, nil
}

// AcknowledgeCheckoutFailure unblocks checkout after a failure was shown to the user.
func (e *Engine) AcknowledgeCheckoutFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = nil
}

// CheckoutFailure returns the unacknowledged checkout failure, if any.
func (e *Engine) CheckoutFailure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

func (e *Engine) idempotencyKey() (string, error) {
	if e.attempt != nil && e.attempt.version == e.version {
		return e.attempt.key, nil
	}
	key, err := e.newKey()
	if err != nil {
		return "", err
	}
	e.attempt = &checkoutAttempt{key: key, version: e.version}
	return key, nil
}

func snapshot(lines Lines) []order.Item {
	items := make([]order.Item, len(lines))
	for i, l := range lines {
		items[i] = order.Item{
			ID:          l.ID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			ImageURL:    l.ImageURL,
			Quantity:    l.Quantity,
		}
	}
	return items
}

func newIdempotencyKey() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("failed to generate idempotency key: %w", err)
	}
	return id.String(), nil
}
