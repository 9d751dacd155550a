package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
)

// ActiveDeliveries serves the poller's last snapshot.
type ActiveDeliveries interface {
	Active() ([]order.Delivery, time.Time)
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"required"`
}

type UpdateDeliveryStatusRequest struct {
	Status        string `json:"status" validate:"required"`
	FailureReason string `json:"failureReason"`
	DeliveryNote  string `json:"deliveryNote"`
}

type AssignDriverRequest struct {
	DriverID ids.ID `json:"driverId" validate:"required"`
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

type OrderDetailResponse struct {
	Order        *order.Order   `json:"order"`
	NextStatuses []order.Status `json:"nextStatuses"`
}

type DeliveryDetailResponse struct {
	Delivery     *order.Delivery        `json:"delivery"`
	NextStatuses []order.DeliveryStatus `json:"nextStatuses"`
}

type AssignDriverResponse struct {
	Delivery   *order.Delivery `json:"delivery"`
	Reassigned bool            `json:"reassigned"`
}

type ActiveDeliveriesResponse struct {
	Deliveries []order.Delivery `json:"deliveries"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

type OrderHandler struct {
	service  order.Service
	active   ActiveDeliveries
	validate *validator.Validate
}

// NewOrderHandler creates the handler. active may be nil, in which case /deliveries/active is not
// served.
func NewOrderHandler(service order.Service, active ActiveDeliveries) *OrderHandler {
	return &OrderHandler{
		service:  service,
		active:   active,
		validate: validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}", h.handleUpdateOrder)
	router.Put("/orders/{id}/status", h.handleUpdateOrderStatus)
	router.Put("/orders/{id}/priority", h.handleUpdateOrderPriority)
	router.Post("/orders/{id}/cancel", h.handleCancelOrder)
	router.Get("/users/{id}/orders", h.handleListUserOrders)

	if h.active != nil {
		router.Get("/deliveries/active", h.handleActiveDeliveries)
	}
	router.Get("/deliveries/{id}", h.handleGetDelivery)
	router.Put("/deliveries/{id}/status", h.handleUpdateDeliveryStatus)
	router.Put("/deliveries/{id}/driver", h.handleAssignDriver)
	router.Put("/deliveries/{id}/location", h.handleUpdateLocation)
	router.Get("/drivers/{id}/deliveries", h.handleListDriverDeliveries)
}

func urlID(r *http.Request) ids.ID {
	return ids.ID(chi.URLParam(r, "id"))
}

// filterOrders applies the status and priority query parameters.
func filterOrders(r *http.Request, orders []order.Order) ([]order.Order, error) {
	q := r.URL.Query()
	if values, ok := q["status"]; ok {
		statuses := make([]order.Status, 0, len(values))
		for _, v := range values {
			s, err := order.ParseStatus(v)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, s)
		}
		orders = order.FilterByStatus(orders, statuses...)
	}
	if values, ok := q["priority"]; ok {
		priorities := make([]order.Priority, 0, len(values))
		for _, v := range values {
			p, err := order.ParsePriority(v)
			if err != nil {
				return nil, err
			}
			priorities = append(priorities, p)
		}
		orders = order.FilterByPriority(orders, priorities...)
	}
	return orders, nil
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), nil)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	orders, err = filterOrders(r, orders)
	if err != nil {
		respondWithServiceError(w, err, "Invalid filter")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrdersForUser(r.Context(), urlID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	orders, err = filterOrders(r, orders)
	if err != nil {
		respondWithServiceError(w, err, "Invalid filter")
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), urlID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}
	respondWithJSON(w, http.StatusOK, OrderDetailResponse{Order: o, NextStatuses: order.NextOrderStatuses(o.Status)})
}

// handleUpdateOrder accepts any partial order. System fields are dropped by the service.
func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var patch order.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Warn().Err(err).Msg("Failed to decode order patch")
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
		return
	}

	updated, err := h.service.UpdateOrder(r.Context(), urlID(r), patch)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), urlID(r), order.Status(req.Status))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleUpdateOrderPriority(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriorityRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateOrderPriority(r.Context(), urlID(r), order.Priority(req.Priority))
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order priority")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.CancelOrder(r.Context(), urlID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to cancel order")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleActiveDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, updatedAt := h.active.Active()
	if deliveries == nil {
		deliveries = []order.Delivery{}
	}
	respondWithJSON(w, http.StatusOK, ActiveDeliveriesResponse{Deliveries: deliveries, UpdatedAt: updatedAt})
}

func (h *OrderHandler) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDelivery(r.Context(), urlID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to get delivery")
		return
	}
	respondWithJSON(w, http.StatusOK, DeliveryDetailResponse{Delivery: d, NextStatuses: order.NextDeliveryStatuses(d.Status)})
}

// handleListDriverDeliveries supports view=active and view=completed with optional RFC 3339 from/to
// bounds for the completed view.
func (h *OrderHandler) handleListDriverDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.service.ListDeliveriesForDriver(r.Context(), urlID(r))
	if err != nil {
		respondWithServiceError(w, err, "Failed to list deliveries")
		return
	}

	q := r.URL.Query()
	switch q.Get("view") {
	case "":
	case "active":
		deliveries = order.ActiveDeliveries(deliveries)
	case "completed":
		from, err := parseTimeParam(q.Get("from"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid from parameter")
			return
		}
		to, err := parseTimeParam(q.Get("to"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid to parameter")
			return
		}
		deliveries = order.CompletedDeliveries(deliveries, from, to)
	default:
		respondWithError(w, http.StatusBadRequest, "view must be active or completed")
		return
	}
	respondWithJSON(w, http.StatusOK, deliveries)
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (h *OrderHandler) handleUpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateDeliveryStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	patch := order.Patch{"status": req.Status}
	if req.FailureReason != "" {
		patch["failureReason"] = req.FailureReason
	}
	if req.DeliveryNote != "" {
		patch["deliveryNote"] = req.DeliveryNote
	}

	updated, err := h.service.UpdateDelivery(r.Context(), urlID(r), patch)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update delivery status")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req AssignDriverRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	res, err := h.service.AssignDriver(r.Context(), urlID(r), req.DriverID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to assign driver")
		return
	}
	respondWithJSON(w, http.StatusOK, AssignDriverResponse{Delivery: res.Delivery, Reassigned: res.Reassigned})
}

func (h *OrderHandler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	updated, err := h.service.UpdateLocation(r.Context(), urlID(r), order.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update location")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}
