package order

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
)

// Status is the order-level lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// DeliveryStatus is the driver-facing lifecycle state. It shares some spellings with Status but is a
// separate vocabulary; convert with DeliveryStatusFor and OrderStatusFor.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

func (s DeliveryStatus) String() string {
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string {
	return string(p)
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Item is a line of an order, copied from the cart at creation time.
type Item struct {
	ID          ids.ID          `json:"id"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Quantity    int             `json:"quantity"`
}

type Order struct {
	ID               ids.ID          `json:"id"`
	OrderNumber      string          `json:"orderNumber,omitempty"`
	UserID           ids.ID          `json:"userId"`
	Status           Status          `json:"status"`
	Priority         Priority        `json:"priority,omitempty"`
	Items            []Item          `json:"items"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	ShippingAddress  string          `json:"shippingAddress"`
	BillingAddress   string          `json:"billingAddress"`
	AssignedDriverID ids.ID          `json:"assignedDriverId,omitempty"`
	IdempotencyKey   string          `json:"idempotencyKey,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	ShippedAt        *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt      *time.Time      `json:"deliveredAt,omitempty"`
}

// CreateRequest is the payload for creating an order.
type CreateRequest struct {
	UserID          ids.ID          `json:"userId"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          Status          `json:"status"`
	Priority        Priority        `json:"priority"`
	ShippingAddress string          `json:"shippingAddress"`
	BillingAddress  string          `json:"billingAddress"`
	Key             string          `json:"idempotencyKey,omitempty"`
}

func (r CreateRequest) IdempotencyKey() string {
	return r.Key
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Delivery is the driver-facing projection of an order. It carries the id of the order it belongs to.
type Delivery struct {
	ID               ids.ID          `json:"id"`
	OrderNumber      string          `json:"orderNumber,omitempty"`
	UserID           ids.ID          `json:"userId,omitempty"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Priority         Priority        `json:"priority,omitempty"`
	ShippingAddress  string          `json:"shippingAddress"`
	BillingAddress   string          `json:"billingAddress,omitempty"`
	Status           DeliveryStatus  `json:"status"`
	AssignedDriverID ids.ID          `json:"assignedDriverId,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
	DeliveryNote     string          `json:"deliveryNote,omitempty"`
	Location         *Location       `json:"location,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	DeliveredAt      *time.Time      `json:"deliveredAt,omitempty"`
}
