package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

// Client is the subset of the resource client the service needs.
type Client interface {
	List(ctx context.Context, resource string, filter url.Values, out any) error
	Get(ctx context.Context, resource string, id ids.ID, out any) error
	Update(ctx context.Context, resource string, id ids.ID, payload, out any) error
}

// IdentitySource reports the identity requests are made for.
type IdentitySource interface {
	Identity() (session.Identity, bool)
}

// AssignResult reports a driver assignment. Reassigned is set when the delivery had already left
// pending.
type AssignResult struct {
	Delivery   *Delivery
	Reassigned bool
}

type Service interface {
	GetOrder(ctx context.Context, id ids.ID) (*Order, error)
	ListOrders(ctx context.Context, filter url.Values) ([]Order, error)
	ListOrdersForUser(ctx context.Context, userID ids.ID) ([]Order, error)
	UpdateOrder(ctx context.Context, id ids.ID, patch Patch) (*Order, error)
	UpdateOrderStatus(ctx context.Context, id ids.ID, status Status) (*Order, error)
	UpdateOrderPriority(ctx context.Context, id ids.ID, priority Priority) (*Order, error)
	CancelOrder(ctx context.Context, id ids.ID) (*Order, error)

	GetDelivery(ctx context.Context, id ids.ID) (*Delivery, error)
	ListDeliveriesForDriver(ctx context.Context, driverID ids.ID) ([]Delivery, error)
	UpdateDelivery(ctx context.Context, id ids.ID, patch Patch) (*Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id ids.ID, status DeliveryStatus) (*Delivery, error)
	FailDelivery(ctx context.Context, id ids.ID, reason string) (*Delivery, error)
	CompleteDelivery(ctx context.Context, id ids.ID, note string) (*Delivery, error)
	AssignDriver(ctx context.Context, id ids.ID, driverID ids.ID) (AssignResult, error)
	UpdateLocation(ctx context.Context, id ids.ID, loc Location) (*Delivery, error)
}

type service struct {
	client   Client
	identity IdentitySource
}

func NewService(client Client, identity IdentitySource) Service {
	return &service{
		client:   client,
		identity: identity,
	}
}

func (s *service) GetOrder(ctx context.Context, id ids.ID) (*Order, error) {
	var o Order
	if err := s.client.Get(ctx, apiclient.ResourceOrders, id, &o); err != nil {
		return nil, relabel(err, "get order %s", id)
	}
	return &o, nil
}

// ListOrders lists every order and is reserved for admins.
func (s *service) ListOrders(ctx context.Context, filter url.Values) ([]Order, error) {
	requester, ok := s.identity.Identity()
	if !ok || requester.Role != session.RoleAdmin {
		log.Warn().Msg("order: non-admin attempted to list all orders")
		return nil, ErrUnauthorized
	}

	var orders []Order
	if err := s.client.List(ctx, apiclient.ResourceOrders, filter, &orders); err != nil {
		return nil, relabel(err, "list orders")
	}
	return orders, nil
}

func (s *service) ListOrdersForUser(ctx context.Context, userID ids.ID) ([]Order, error) {
	if err := s.authorizeOwner(userID); err != nil {
		return nil, err
	}

	var orders []Order
	if err := s.client.List(ctx, apiclient.ResourceOrders, url.Values{"userId": {userID.String()}}, &orders); err != nil {
		return nil, relabel(err, "list orders for user %s", userID)
	}
	return orders, nil
}

func (s *service) UpdateOrder(ctx context.Context, id ids.ID, patch Patch) (*Order, error) {
	clean, status, err := ValidateOrderPatch(patch)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("order: rejected update")
		return nil, err
	}
	if len(clean) == 0 {
		return s.GetOrder(ctx, id)
	}

	if status != nil {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}

		if current.Status == *status {
			delete(clean, fieldStatus)
			if len(clean) == 0 {
				log.Info().Stringer("order_id", id).Stringer("status", *status).Msg("order: status is already the same, no update needed")
				return current, nil
			}
		} else if !current.Status.CanTransitionTo(*status) {
			log.Warn().
				Stringer("order_id", id).
				Stringer("current_status", current.Status).
				Stringer("new_status", *status).
				Msg("order: invalid status transition attempt")
			return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, *status)
		}
	}

	var updated Order
	if err := s.client.Update(ctx, apiclient.ResourceOrders, id, clean, &updated); err != nil {
		log.Error().Err(err).Stringer("order_id", id).Msg("order: failed to update order")
		return nil, relabel(err, "update order %s", id)
	}

	log.Info().Stringer("order_id", id).Stringer("status", updated.Status).Stringer("priority", updated.Priority).Msg("order: order updated")
	return &updated, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, id ids.ID, status Status) (*Order, error) {
	return s.UpdateOrder(ctx, id, Patch{fieldStatus: status})
}

// UpdateOrderPriority changes the priority regardless of status.
func (s *service) UpdateOrderPriority(ctx context.Context, id ids.ID, priority Priority) (*Order, error) {
	return s.UpdateOrder(ctx, id, Patch{fieldPriority: priority})
}

func (s *service) CancelOrder(ctx context.Context, id ids.ID) (*Order, error) {
	return s.UpdateOrderStatus(ctx, id, StatusCancelled)
}

func (s *service) GetDelivery(ctx context.Context, id ids.ID) (*Delivery, error) {
	var d Delivery
	if err := s.client.Get(ctx, apiclient.ResourceDeliveries, id, &d); err != nil {
		return nil, relabel(err, "get delivery %s", id)
	}
	return &d, nil
}

func (s *service) ListDeliveriesForDriver(ctx context.Context, driverID ids.ID) ([]Delivery, error) {
	if err := s.authorizeOwner(driverID); err != nil {
		return nil, err
	}

	var deliveries []Delivery
	filter := url.Values{fieldDriver: {driverID.String()}}
	if err := s.client.List(ctx, apiclient.ResourceDeliveries, filter, &deliveries); err != nil {
		return nil, relabel(err, "list deliveries for driver %s", driverID)
	}
	return deliveries, nil
}

func (s *service) UpdateDelivery(ctx context.Context, id ids.ID, patch Patch) (*Delivery, error) {
	clean, status, err := ValidateDeliveryPatch(patch)
	if err != nil {
		log.Warn().Err(err).Stringer("delivery_id", id).Msg("order: rejected delivery update")
		return nil, err
	}
	if len(clean) == 0 {
		return s.GetDelivery(ctx, id)
	}

	_, assigning := clean[fieldDriver]
	if status != nil || assigning {
		current, err := s.GetDelivery(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := checkDeliveryChange(current, clean, status); err != nil {
			log.Warn().Err(err).Stringer("delivery_id", id).Stringer("current_status", current.Status).Msg("order: rejected delivery update")
			return nil, err
		}
		if status != nil && current.Status == *status {
			delete(clean, fieldStatus)
			if len(clean) == 0 {
				log.Info().Stringer("delivery_id", id).Stringer("status", *status).Msg("order: delivery status is already the same, no update needed")
				return current, nil
			}
		}
	}

	var updated Delivery
	if err := s.client.Update(ctx, apiclient.ResourceDeliveries, id, clean, &updated); err != nil {
		log.Error().Err(err).Stringer("delivery_id", id).Msg("order: failed to update delivery")
		return nil, relabel(err, "update delivery %s", id)
	}

	log.Info().Stringer("delivery_id", id).Stringer("status", updated.Status).Msg("order: delivery updated")
	return &updated, nil
}

func checkDeliveryChange(current *Delivery, clean Patch, status *DeliveryStatus) error {
	driver := current.AssignedDriverID
	if v, ok := clean.stringField(fieldDriver); ok {
		driver = ids.ID(v)
	} else if _, ok := clean[fieldDriver]; ok {
		driver = ""
	}

	target := current.Status
	if status != nil {
		target = *status
		if target != current.Status && !current.Status.CanTransitionTo(target) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, target)
		}
	}

	if target.RequiresDriver() && driver.IsZero() {
		return fmt.Errorf("%w: %s", ErrDriverRequired, target)
	}
	return nil
}

func (s *service) UpdateDeliveryStatus(ctx context.Context, id ids.ID, status DeliveryStatus) (*Delivery, error) {
	return s.UpdateDelivery(ctx, id, Patch{fieldStatus: status})
}

func (s *service) FailDelivery(ctx context.Context, id ids.ID, reason string) (*Delivery, error) {
	return s.UpdateDelivery(ctx, id, Patch{fieldStatus: DeliveryFailed, fieldFailureReason: reason})
}

func (s *service) CompleteDelivery(ctx context.Context, id ids.ID, note string) (*Delivery, error) {
	patch := Patch{fieldStatus: DeliveryDelivered}
	if note != "" {
		patch[fieldDeliveryNote] = note
	}
	return s.UpdateDelivery(ctx, id, patch)
}

// AssignDriver sets the driver of a delivery. A pending delivery moves to assigned. Reassigning a
// delivery that is already under way is allowed but logged; a finished delivery cannot be assigned.
func (s *service) AssignDriver(ctx context.Context, id ids.ID, driverID ids.ID) (AssignResult, error) {
	if driverID.IsZero() {
		return AssignResult{}, fmt.Errorf("%w: driver id is empty", ErrDriverRequired)
	}

	current, err := s.GetDelivery(ctx, id)
	if err != nil {
		return AssignResult{}, err
	}

	if current.Status.IsTerminal() {
		log.Warn().Stringer("delivery_id", id).Stringer("status", current.Status).Msg("order: cannot assign driver to finished delivery")
		return AssignResult{}, fmt.Errorf("%w: cannot assign a driver to a %s delivery", ErrIllegalTransition, current.Status)
	}

	patch := Patch{fieldDriver: driverID}
	reassigned := false
	if current.Status == DeliveryPending {
		patch[fieldStatus] = DeliveryAssigned
	} else {
		reassigned = true
		log.Warn().
			Stringer("delivery_id", id).
			Stringer("status", current.Status).
			Stringer("previous_driver_id", current.AssignedDriverID).
			Stringer("driver_id", driverID).
			Msg("order: reassigning driver on a delivery already under way")
	}

	var updated Delivery
	if err := s.client.Update(ctx, apiclient.ResourceDeliveries, id, patch, &updated); err != nil {
		log.Error().Err(err).Stringer("delivery_id", id).Msg("order: failed to assign driver")
		return AssignResult{}, relabel(err, "assign driver to delivery %s", id)
	}

	log.Info().Stringer("delivery_id", id).Stringer("driver_id", driverID).Msg("order: driver assigned")
	return AssignResult{Delivery: &updated, Reassigned: reassigned}, nil
}

func (s *service) UpdateLocation(ctx context.Context, id ids.ID, loc Location) (*Delivery, error) {
	return s.UpdateDelivery(ctx, id, Patch{fieldLocation: loc})
}

// authorizeOwner rejects a non-admin reading records that belong to someone else. It is a local
// guard only; the backend still authorizes the request.
func (s *service) authorizeOwner(target ids.ID) error {
	requester, ok := s.identity.Identity()
	if !ok {
		log.Warn().Stringer("target_id", target).Msg("order: anonymous read rejected")
		return ErrUnauthorized
	}
	if requester.Role == session.RoleAdmin || ids.Same(requester.ID, target) {
		return nil
	}

	log.Warn().
		Stringer("requester_id", requester.ID).
		Stringer("role", requester.Role).
		Stringer("target_id", target).
		Msg("order: cross-user read rejected")
	return ErrUnauthorized
}

// relabel wraps a client error, marking 403 as ErrAccessDenied and 404 as ErrNotFound.
func relabel(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	switch apiclient.StatusOf(err) {
	case http.StatusForbidden:
		return fmt.Errorf("order: %s: %w: %w", msg, ErrAccessDenied, err)
	case http.StatusNotFound:
		return fmt.Errorf("order: %s: %w: %w", msg, ErrNotFound, err)
	}
	if errors.Is(err, apiclient.ErrMalformedResponse) {
		log.Error().Err(err).Msg("order: backend returned an unrecognized body")
	}
	return fmt.Errorf("order: %s: %w", msg, err)
}
