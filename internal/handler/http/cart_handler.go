package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/grocery-storefront/internal/cart"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
)

// CartEngine is the cart as seen by the HTTP surface.
type CartEngine interface {
	Add(ctx context.Context, p cart.Product) error
	Decrement(ctx context.Context, id ids.ID) error
	Remove(ctx context.Context, id ids.ID) error
	UpdatePrice(ctx context.Context, id ids.ID, price decimal.Decimal) error
	Clear(ctx context.Context) error
	Checkout(ctx context.Context, station *cart.PickupStation) (*order.Order, error)
	AcknowledgeCheckoutFailure()
	CheckoutFailure() error
	Lines() cart.Lines
	Total() decimal.Decimal
	Count() int
	Scope() string
}

type AddItemRequest struct {
	ID          ids.ID `json:"id" validate:"required"`
	ProductName string `json:"productName" validate:"required"`
	UnitPrice   any    `json:"unitPrice" validate:"required"`
	ImageURL    string `json:"imageUrl"`
}

type UpdatePriceRequest struct {
	UnitPrice any `json:"unitPrice" validate:"required"`
}

type PickupStationRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
	District string `json:"district" validate:"required"`
}

type CheckoutRequest struct {
	PickupStation *PickupStationRequest `json:"pickupStation"`
}

type CartResponse struct {
	Scope           string          `json:"scope"`
	Items           cart.Lines      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Count           int             `json:"count"`
	CheckoutBlocked string          `json:"checkoutBlocked,omitempty"`
}

type CartHandler struct {
	engine   CartEngine
	validate *validator.Validate
}

func NewCartHandler(engine CartEngine) *CartHandler {
	return &CartHandler{
		engine:   engine,
		validate: validator.New(),
	}
}

func (h *CartHandler) RegisterRoutes(router chi.Router) {
	router.Get("/cart", h.handleGetCart)
	router.Delete("/cart", h.handleClearCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Delete("/cart/items/{id}", h.handleRemoveItem)
	router.Post("/cart/items/{id}/decrement", h.handleDecrementItem)
	router.Put("/cart/items/{id}/price", h.handleUpdatePrice)
	router.Post("/cart/checkout", h.handleCheckout)
	router.Post("/cart/checkout/acknowledge", h.handleAcknowledge)
}

func (h *CartHandler) snapshot() CartResponse {
	resp := CartResponse{
		Scope: h.engine.Scope(),
		Items: h.engine.Lines(),
		Total: h.engine.Total(),
		Count: h.engine.Count(),
	}
	if err := h.engine.CheckoutFailure(); err != nil {
		resp.CheckoutBlocked = err.Error()
	}
	return resp
}

func (h *CartHandler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Clear(r.Context()); err != nil {
		respondWithServiceError(w, err, "Failed to clear cart")
		return
	}
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	product, err := cart.NewProduct(req.ID, req.ProductName, req.UnitPrice, req.ImageURL)
	if err != nil {
		respondWithServiceError(w, err, "Invalid product")
		return
	}

	if err := h.engine.Add(r.Context(), product); err != nil {
		respondWithServiceError(w, err, "Failed to add item")
		return
	}
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Remove(r.Context(), ids.ID(chi.URLParam(r, "id"))); err != nil {
		respondWithServiceError(w, err, "Failed to remove item")
		return
	}
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleDecrementItem(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Decrement(r.Context(), ids.ID(chi.URLParam(r, "id"))); err != nil {
		respondWithServiceError(w, err, "Failed to decrement item")
		return
	}
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePriceRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	price, err := cart.ParsePrice(req.UnitPrice)
	if err != nil {
		respondWithServiceError(w, err, "Invalid price")
		return
	}

	if err := h.engine.UpdatePrice(r.Context(), ids.ID(chi.URLParam(r, "id")), price); err != nil {
		respondWithServiceError(w, err, "Failed to update price")
		return
	}
	respondWithJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !decodeOptionalAndValidate(w, r, h.validate, &req) {
		return
	}

	var station *cart.PickupStation
	if req.PickupStation != nil {
		station = &cart.PickupStation{
			Name:     req.PickupStation.Name,
			Location: req.PickupStation.Location,
			District: req.PickupStation.District,
		}
	}

	// A checkout cannot be aborted by the caller going away.
	created, err := h.engine.Checkout(context.WithoutCancel(r.Context()), station)
	if created == nil {
		respondWithServiceError(w, err, "Checkout failed")
		return
	}
	if err != nil {
		log.Error().Err(err).Stringer("order_id", created.ID).Msg("Order created but the cart could not be cleared")
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *CartHandler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.engine.AcknowledgeCheckoutFailure()
	respondWithJSON(w, http.StatusOK, h.snapshot())
}
