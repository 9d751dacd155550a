package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/cart"
	apihttp "github.com/vasiliy-maslov/grocery-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

func serve(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	router := apihttp.NewRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionHandler_Login(t *testing.T) {
	mockSession := new(MockSession)
	router := apihttp.NewRouter(apihttp.NewSessionHandler(mockSession))

	mockSession.On("Login", mock.Anything, mock.MatchedBy(func(i session.Identity) bool {
		return i.ID == "42" && i.Role == session.RoleUser && i.Email == "jane@example.com"
	}), "token-42").Return(nil).Once()

	rr := serve(t, router, http.MethodPost, "/session", map[string]any{
		"token": "token-42",
		"user": map[string]any{
			"id":       42,
			"email":    "jane@example.com",
			"fullName": "Jane Wanjiku",
			"role":     "user",
		},
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp apihttp.SessionResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Authenticated)
	assert.Equal(t, ids.ID("42"), resp.User.ID)
	mockSession.AssertExpectations(t)
}

func TestSessionHandler_LoginValidation(t *testing.T) {
	mockSession := new(MockSession)
	router := apihttp.NewRouter(apihttp.NewSessionHandler(mockSession))

	rr := serve(t, router, http.MethodPost, "/session", map[string]any{
		"token": "t",
		"user":  map[string]any{"id": 1, "email": "not-an-email", "fullName": "J", "role": "superuser"},
	})

	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp apihttp.ValidationErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "Email")
	assert.Contains(t, resp.Details, "Role")
	assert.Contains(t, resp.Details, "FullName")
	mockSession.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionHandler_UpdateProfileNotLoggedIn(t *testing.T) {
	mockSession := new(MockSession)
	router := apihttp.NewRouter(apihttp.NewSessionHandler(mockSession))
	mockSession.On("Update", mock.Anything, mock.Anything).Return(session.Identity{}, session.ErrNotLoggedIn).Once()

	rr := serve(t, router, http.MethodPut, "/session/profile", map[string]any{
		"email": "jane@example.com", "fullName": "Jane W.",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCartHandler_AddItem(t *testing.T) {
	engine := new(MockCartEngine)
	router := apihttp.NewRouter(apihttp.NewCartHandler(engine))

	lines := cart.Lines{{ID: "1", ProductName: "Apples", UnitPrice: decimal.RequireFromString("2.50"), Quantity: 1}}
	engine.expectSnapshot(lines, nil)
	engine.On("Add", mock.Anything, mock.MatchedBy(func(p cart.Product) bool {
		return p.ID == "1" && p.UnitPrice.Equal(decimal.RequireFromString("2.50"))
	})).Return(nil).Once()

	rr := serve(t, router, http.MethodPost, "/cart/items", map[string]any{
		"id": 1, "productName": "Apples", "unitPrice": "2.50",
	})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp apihttp.CartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "42", resp.Scope)
	assert.Equal(t, 1, resp.Count)
	assert.True(t, resp.Total.Equal(decimal.RequireFromString("2.5")))
	engine.AssertExpectations(t)
}

func TestCartHandler_AddItemRejectsBadPrice(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "negative", body: map[string]any{"id": 1, "productName": "Apples", "unitPrice": -1}},
		{name: "not_numeric", body: map[string]any{"id": 1, "productName": "Apples", "unitPrice": "free"}},
		{name: "missing", body: map[string]any{"id": 1, "productName": "Apples"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockCartEngine)
			router := apihttp.NewRouter(apihttp.NewCartHandler(engine))

			rr := serve(t, router, http.MethodPost, "/cart/items", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			engine.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
		})
	}
}

func TestCartHandler_Checkout(t *testing.T) {
	created := &order.Order{ID: "100", OrderNumber: "ORD-000100", Status: order.StatusConfirmed}

	tests := []struct {
		name       string
		body       any
		result     *order.Order
		err        error
		wantStatus int
		wantPickup bool
	}{
		{name: "success", body: nil, result: created, wantStatus: http.StatusCreated},
		{
			name:       "pickup_station",
			body:       map[string]any{"pickupStation": map[string]any{"name": "Westlands Hub", "location": "Westlands", "district": "Nairobi"}},
			result:     created,
			wantStatus: http.StatusCreated,
			wantPickup: true,
		},
		{name: "empty_cart", err: cart.ErrInvalidCheckoutState, wantStatus: http.StatusUnprocessableEntity},
		{name: "blocked", err: cart.ErrCheckoutBlocked, wantStatus: http.StatusConflict},
		{name: "backend_down", err: &apiclient.RequestFailed{Status: 503}, wantStatus: http.StatusBadGateway},
		{name: "backend_forbidden", err: &apiclient.RequestFailed{Status: 403}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockCartEngine)
			router := apihttp.NewRouter(apihttp.NewCartHandler(engine))

			stationMatcher := mock.MatchedBy(func(s *cart.PickupStation) bool {
				if !tt.wantPickup {
					return s == nil
				}
				return s != nil && s.Address() == "Pickup: Westlands Hub, Westlands, Nairobi"
			})
			if tt.result != nil {
				engine.On("Checkout", mock.Anything, stationMatcher).Return(tt.result, nil).Once()
			} else {
				engine.On("Checkout", mock.Anything, stationMatcher).Return(nil, tt.err).Once()
			}

			rr := serve(t, router, http.MethodPost, "/cart/checkout", tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			engine.AssertExpectations(t)
		})
	}
}

func TestCartHandler_CheckoutStreamedBody(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantPickup bool
	}{
		{name: "empty", body: "", wantStatus: http.StatusCreated},
		{
			name:       "pickup_station",
			body:       `{"pickupStation":{"name":"Westlands Hub","location":"Westlands","district":"Nairobi"}}`,
			wantStatus: http.StatusCreated,
			wantPickup: true,
		},
		{name: "malformed", body: `{"pickupStation":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockCartEngine)
			router := apihttp.NewRouter(apihttp.NewCartHandler(engine))
			if tt.wantStatus == http.StatusCreated {
				engine.On("Checkout", mock.Anything, mock.MatchedBy(func(s *cart.PickupStation) bool {
					return (s != nil) == tt.wantPickup
				})).Return(&order.Order{ID: "100", Status: order.StatusConfirmed}, nil).Once()
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", io.NopCloser(strings.NewReader(tt.body)))
			req.ContentLength = -1
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			engine.AssertExpectations(t)
		})
	}
}

func TestCartHandler_Acknowledge(t *testing.T) {
	engine := new(MockCartEngine)
	router := apihttp.NewRouter(apihttp.NewCartHandler(engine))
	engine.expectSnapshot(cart.Lines{}, nil)
	engine.On("AcknowledgeCheckoutFailure").Return().Once()

	rr := serve(t, router, http.MethodPost, "/cart/checkout/acknowledge", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	engine.AssertExpectations(t)
}

func TestCartHandler_GetReportsBlockedCheckout(t *testing.T) {
	engine := new(MockCartEngine)
	router := apihttp.NewRouter(apihttp.NewCartHandler(engine))
	engine.expectSnapshot(cart.Lines{}, &apiclient.RequestFailed{Status: 503, Message: "upstream down"})

	rr := serve(t, router, http.MethodGet, "/cart", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp apihttp.CartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.CheckoutBlocked)
	assert.Zero(t, resp.Count)
}

func TestCartHandler_DecrementRemovePrice(t *testing.T) {
	engine := new(MockCartEngine)
	router := apihttp.NewRouter(apihttp.NewCartHandler(engine))
	engine.expectSnapshot(cart.Lines{}, nil)

	engine.On("Decrement", mock.Anything, ids.ID("1")).Return(nil).Once()
	engine.On("Remove", mock.Anything, ids.ID("2")).Return(nil).Once()
	engine.On("UpdatePrice", mock.Anything, ids.ID("3"), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("4.20"))
	})).Return(nil).Once()
	engine.On("Clear", mock.Anything).Return(nil).Once()

	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodPost, "/cart/items/1/decrement", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodDelete, "/cart/items/2", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodPut, "/cart/items/3/price", map[string]any{"unitPrice": 4.2}).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodDelete, "/cart", nil).Code)
	engine.AssertExpectations(t)
}

func TestOrderHandler_UpdateStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "illegal_transition", err: order.ErrIllegalTransition, wantStatus: http.StatusConflict},
		{name: "invalid_status", err: order.ErrInvalidStatus, wantStatus: http.StatusBadRequest},
		{name: "not_found", err: order.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "access_denied", err: order.ErrAccessDenied, wantStatus: http.StatusForbidden},
		{name: "malformed", err: apiclient.ErrMalformedResponse, wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockOrderService)
			router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
			svc.On("UpdateOrderStatus", mock.Anything, ids.ID("7"), order.StatusShipped).Return(nil, tt.err).Once()

			rr := serve(t, router, http.MethodPut, "/orders/7/status", map[string]any{"status": "shipped"})
			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_GetOrderIncludesNextStatuses(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("GetOrder", mock.Anything, ids.ID("7")).Return(&order.Order{ID: "7", Status: order.StatusConfirmed}, nil).Once()

	rr := serve(t, router, http.MethodGet, "/orders/7", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp apihttp.OrderDetailResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, []order.Status{order.StatusProcessing, order.StatusCancelled}, resp.NextStatuses)
}

func TestOrderHandler_ListUserOrdersFilters(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("ListOrdersForUser", mock.Anything, ids.ID("42")).Return([]order.Order{
		{ID: "1", Status: order.StatusPending, Priority: order.PriorityLow},
		{ID: "2", Status: order.StatusShipped, Priority: order.PriorityUrgent},
	}, nil).Times(2)

	rr := serve(t, router, http.MethodGet, "/users/42/orders?status=shipped", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var orders []order.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, ids.ID("2"), orders[0].ID)

	rr = serve(t, router, http.MethodGet, "/users/42/orders?priority=asap", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandler_CrossUserReadIsForbidden(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("ListOrdersForUser", mock.Anything, ids.ID("43")).Return(nil, order.ErrUnauthorized).Once()

	rr := serve(t, router, http.MethodGet, "/users/43/orders", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestOrderHandler_PatchPassesBodyThrough(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("UpdateOrder", mock.Anything, ids.ID("7"), order.Patch{"billingAddress": "Karen", "shippedAt": "2026-01-01"}).
		Return(&order.Order{ID: "7"}, nil).Once()

	rr := serve(t, router, http.MethodPatch, "/orders/7", `{"billingAddress":"Karen","shippedAt":"2026-01-01"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestOrderHandler_DeliveryStatus(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("UpdateDelivery", mock.Anything, ids.ID("3"), order.Patch{"status": "failed"}).
		Return(nil, order.ErrMissingFailureReason).Once()
	svc.On("UpdateDelivery", mock.Anything, ids.ID("3"), order.Patch{"status": "failed", "failureReason": "gate locked"}).
		Return(&order.Delivery{ID: "3", Status: order.DeliveryFailed}, nil).Once()

	assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPut, "/deliveries/3/status", map[string]any{"status": "failed"}).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodPut, "/deliveries/3/status", map[string]any{"status": "failed", "failureReason": "gate locked"}).Code)
	svc.AssertExpectations(t)
}

func TestOrderHandler_AssignDriver(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("AssignDriver", mock.Anything, ids.ID("3"), ids.ID("9")).Return(order.AssignResult{
		Delivery:   &order.Delivery{ID: "3", Status: order.DeliveryInTransit, AssignedDriverID: "9"},
		Reassigned: true,
	}, nil).Once()

	rr := serve(t, router, http.MethodPut, "/deliveries/3/driver", map[string]any{"driverId": 9})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp apihttp.AssignDriverResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Reassigned)
}

func TestOrderHandler_LocationValidation(t *testing.T) {
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("UpdateLocation", mock.Anything, ids.ID("3"), order.Location{Latitude: -1.28, Longitude: 36.82}).
		Return(&order.Delivery{ID: "3"}, nil).Once()

	assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPut, "/deliveries/3/location", map[string]any{"latitude": 95.0, "longitude": 0.0}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, router, http.MethodPut, "/deliveries/3/location", map[string]any{"latitude": 1.0}).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodPut, "/deliveries/3/location", map[string]any{"latitude": -1.28, "longitude": 36.82}).Code)
	svc.AssertExpectations(t)
}

func TestOrderHandler_DriverDeliveriesViews(t *testing.T) {
	delivered := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, nil))
	svc.On("ListDeliveriesForDriver", mock.Anything, ids.ID("9")).Return([]order.Delivery{
		{ID: "1", Status: order.DeliveryAssigned},
		{ID: "2", Status: order.DeliveryDelivered, DeliveredAt: &delivered},
		{ID: "3", Status: order.DeliveryPickedUp},
	}, nil)

	tests := []struct {
		query   string
		wantIDs []ids.ID
		status  int
	}{
		{query: "", wantIDs: []ids.ID{"1", "2", "3"}, status: http.StatusOK},
		{query: "?view=active", wantIDs: []ids.ID{"1"}, status: http.StatusOK},
		{query: "?view=completed&from=2026-03-01T00:00:00Z", wantIDs: []ids.ID{"2"}, status: http.StatusOK},
		{query: "?view=completed&from=2026-03-11T00:00:00Z", wantIDs: []ids.ID{}, status: http.StatusOK},
		{query: "?view=completed&from=yesterday", status: http.StatusBadRequest},
		{query: "?view=everything", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := serve(t, router, http.MethodGet, "/drivers/9/deliveries"+tt.query, nil)
			require.Equal(t, tt.status, rr.Code)
			if tt.status != http.StatusOK {
				return
			}
			var got []order.Delivery
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			gotIDs := make([]ids.ID, 0, len(got))
			for _, d := range got {
				gotIDs = append(gotIDs, d.ID)
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}
}

func TestOrderHandler_ActiveDeliveriesSnapshot(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := new(MockOrderService)
	router := apihttp.NewRouter(apihttp.NewOrderHandler(svc, stubActive{
		deliveries: []order.Delivery{{ID: "1", Status: order.DeliveryAssigned}},
		at:         at,
	}))

	rr := serve(t, router, http.MethodGet, "/deliveries/active", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp apihttp.ActiveDeliveriesResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Deliveries, 1)
	assert.True(t, at.Equal(resp.UpdatedAt))
	svc.AssertNotCalled(t, "GetDelivery", mock.Anything, mock.Anything)
}
