package order

import (
	"slices"
	"time"

	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
)

func FilterByStatus(orders []Order, statuses ...Status) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if slices.Contains(statuses, o.Status) {
			out = append(out, o)
		}
	}
	return out
}

func FilterByPriority(orders []Order, priorities ...Priority) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if slices.Contains(priorities, o.Priority) {
			out = append(out, o)
		}
	}
	return out
}

func FilterDeliveriesByStatus(deliveries []Delivery, statuses ...DeliveryStatus) []Delivery {
	out := make([]Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		if slices.Contains(statuses, d.Status) {
			out = append(out, d)
		}
	}
	return out
}

func FilterByDriver(deliveries []Delivery, driverID ids.ID) []Delivery {
	out := make([]Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		if ids.Same(d.AssignedDriverID, driverID) {
			out = append(out, d)
		}
	}
	return out
}

// ActiveDeliveries keeps deliveries that are assigned or in transit.
func ActiveDeliveries(deliveries []Delivery) []Delivery {
	return FilterDeliveriesByStatus(deliveries, DeliveryAssigned, DeliveryInTransit)
}

// CompletedDeliveries keeps delivered deliveries. A zero from or to leaves that side unbounded; a
// bounded query skips deliveries without a deliveredAt time.
func CompletedDeliveries(deliveries []Delivery, from, to time.Time) []Delivery {
	out := make([]Delivery, 0, len(deliveries))
	for _, d := range deliveries {
		if d.Status != DeliveryDelivered {
			continue
		}
		if !from.IsZero() || !to.IsZero() {
			if d.DeliveredAt == nil {
				continue
			}
			if !from.IsZero() && d.DeliveredAt.Before(from) {
				continue
			}
			if !to.IsZero() && d.DeliveredAt.After(to) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
