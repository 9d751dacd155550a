package order

import (
	"fmt"
)

var orderTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var deliveryTransitions = map[DeliveryStatus]map[DeliveryStatus]bool{
	DeliveryPending: {
		DeliveryAssigned:  true,
		DeliveryCancelled: true,
	},
	DeliveryAssigned: {
		DeliveryPickedUp:  true,
		DeliveryCancelled: true,
	},
	DeliveryPickedUp: {
		DeliveryInTransit: true,
		DeliveryCancelled: true,
	},
	DeliveryInTransit: {
		DeliveryDelivered: true,
		DeliveryFailed:    true,
		DeliveryCancelled: true,
	},
	DeliveryDelivered: {},
	DeliveryFailed:    {},
	DeliveryCancelled: {},
}

// Lifecycle order, used to list successors deterministically.
var (
	orderLifecycle = []Status{
		StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled,
	}
	deliveryLifecycle = []DeliveryStatus{
		DeliveryPending, DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit,
		DeliveryDelivered, DeliveryFailed, DeliveryCancelled,
	}
	priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
)

func (s Status) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s Status) IsTerminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether next is a legal successor. Staying in the same status is not a
// transition and returns false.
func (s Status) CanTransitionTo(next Status) bool {
	return orderTransitions[s][next]
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryTransitions[s]
	return ok
}

func (s DeliveryStatus) IsTerminal() bool {
	next, ok := deliveryTransitions[s]
	return ok && len(next) == 0
}

func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	return deliveryTransitions[s][next]
}

// RequiresDriver reports whether a delivery in this status must have an assigned driver.
func (s DeliveryStatus) RequiresDriver() bool {
	switch s {
	case DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit, DeliveryDelivered, DeliveryFailed:
		return true
	}
	return false
}

// NextOrderStatuses lists the legal successors of s in lifecycle order.
func NextOrderStatuses(s Status) []Status {
	var next []Status
	for _, candidate := range orderLifecycle {
		if s.CanTransitionTo(candidate) {
			next = append(next, candidate)
		}
	}
	return next
}

func NextDeliveryStatuses(s DeliveryStatus) []DeliveryStatus {
	var next []DeliveryStatus
	for _, candidate := range deliveryLifecycle {
		if s.CanTransitionTo(candidate) {
			next = append(next, candidate)
		}
	}
	return next
}

func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

func ParseDeliveryStatus(v string) (DeliveryStatus, error) {
	s := DeliveryStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

func ParsePriority(v string) (Priority, error) {
	p := Priority(v)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, v)
	}
	return p, nil
}

// Priorities returns the priority vocabulary from lowest to highest.
func Priorities() []Priority {
	return append([]Priority(nil), priorities...)
}

// DeliveryStatusFor maps an order status onto the delivery vocabulary.
func DeliveryStatusFor(s Status) DeliveryStatus {
	switch s {
	case StatusShipped:
		return DeliveryInTransit
	case StatusDelivered:
		return DeliveryDelivered
	case StatusCancelled:
		return DeliveryCancelled
	default:
		return DeliveryPending
	}
}

// OrderStatusFor maps a delivery status onto the order vocabulary. A failed delivery cancels the order.
func OrderStatusFor(s DeliveryStatus) Status {
	switch s {
	case DeliveryPickedUp, DeliveryInTransit:
		return StatusShipped
	case DeliveryDelivered:
		return StatusDelivered
	case DeliveryFailed, DeliveryCancelled:
		return StatusCancelled
	default:
		return StatusProcessing
	}
}
