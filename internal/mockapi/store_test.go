package mockapi

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
)

var fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestStore() *Store {
	s := NewStore()
	s.SetClock(func() time.Time { return fixedNow })
	return s
}

func orderRecord(userID string) Record {
	return Record{
		"userId":          json.Number(userID),
		"items":           []any{map[string]any{"id": json.Number("101"), "quantity": json.Number("2")}},
		"totalAmount":     json.Number("0.90"),
		"status":          "confirmed",
		"shippingAddress": "12 Riverside Drive, Nairobi",
	}
}

func TestStore_CreateOrder(t *testing.T) {
	s := newTestStore()

	created, replayed, err := s.CreateOrder(orderRecord("42"), "key-1")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, int64(1), created["id"])
	assert.Equal(t, "ORD-000001", created["orderNumber"])
	assert.Equal(t, "confirmed", created["status"])
	assert.Equal(t, "normal", created["priority"])
	assert.Equal(t, fixedNow, created["createdAt"])

	delivery, err := s.Get(apiclient.ResourceDeliveries, "1")
	require.NoError(t, err)
	assert.Equal(t, "pending", delivery["status"])
	assert.Equal(t, "ORD-000001", delivery["orderNumber"])
	assert.Equal(t, json.Number("42"), delivery["userId"])
}

func TestStore_CreateOrderDeduplicatesOnKey(t *testing.T) {
	s := newTestStore()

	first, _, err := s.CreateOrder(orderRecord("42"), "key-1")
	require.NoError(t, err)

	again, replayed, err := s.CreateOrder(orderRecord("42"), "key-1")
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first["id"], again["id"])

	other, replayed, err := s.CreateOrder(orderRecord("42"), "key-2")
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "ORD-000002", other["orderNumber"])

	assert.Len(t, s.List(apiclient.ResourceOrders, nil), 2)
	assert.Len(t, s.List(apiclient.ResourceDeliveries, nil), 2)
}

func TestStore_CreateOrderRejectsIncompleteOrders(t *testing.T) {
	s := newTestStore()

	noUser := orderRecord("42")
	delete(noUser, "userId")
	_, _, err := s.CreateOrder(noUser, "")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	noItems := orderRecord("42")
	noItems["items"] = []any{}
	_, _, err = s.CreateOrder(noItems, "")
	assert.ErrorIs(t, err, ErrInvalidRecord)

	assert.Empty(t, s.List(apiclient.ResourceOrders, nil))
}

func TestStore_PatchKeepsImmutableFields(t *testing.T) {
	s := newTestStore()
	_, _, err := s.CreateOrder(orderRecord("42"), "")
	require.NoError(t, err)

	updated, err := s.Patch(apiclient.ResourceOrders, "1", Record{
		"id":             json.Number("99"),
		"orderNumber":    "ORD-999999",
		"billingAddress": "Karen, Nairobi",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated["id"])
	assert.Equal(t, "ORD-000001", updated["orderNumber"])
	assert.Equal(t, "Karen, Nairobi", updated["billingAddress"])

	_, err = s.Patch(apiclient.ResourceOrders, "2", Record{"status": "shipped"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OrderStatusStampsAndCancelsDelivery(t *testing.T) {
	s := newTestStore()
	_, _, err := s.CreateOrder(orderRecord("42"), "")
	require.NoError(t, err)

	shipped, err := s.Patch(apiclient.ResourceOrders, "1", Record{"status": "shipped"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, shipped["shippedAt"])
	assert.NotContains(t, shipped, "deliveredAt")

	_, err = s.Patch(apiclient.ResourceOrders, "1", Record{"status": "cancelled"})
	require.NoError(t, err)

	delivery, err := s.Get(apiclient.ResourceDeliveries, "1")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", delivery["status"])
}

func TestStore_DeliveryStatusSyncsOrder(t *testing.T) {
	tests := []struct {
		delivery  string
		wantOrder string
	}{
		{delivery: "assigned", wantOrder: "processing"},
		{delivery: "picked_up", wantOrder: "shipped"},
		{delivery: "in_transit", wantOrder: "shipped"},
		{delivery: "delivered", wantOrder: "delivered"},
		{delivery: "failed", wantOrder: "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.delivery, func(t *testing.T) {
			s := newTestStore()
			_, _, err := s.CreateOrder(orderRecord("42"), "")
			require.NoError(t, err)

			d, err := s.Patch(apiclient.ResourceDeliveries, "1", Record{"status": tt.delivery})
			require.NoError(t, err)

			o, err := s.Get(apiclient.ResourceOrders, "1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, o["status"])

			if tt.delivery == "delivered" {
				assert.Equal(t, fixedNow, d["deliveredAt"])
				assert.Equal(t, fixedNow, o["deliveredAt"])
				assert.Equal(t, fixedNow, o["shippedAt"])
			}
		})
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := newTestStore()
	for _, user := range []string{"42", "43", "42"} {
		_, _, err := s.CreateOrder(orderRecord(user), "")
		require.NoError(t, err)
	}
	_, err := s.Patch(apiclient.ResourceDeliveries, "3", Record{"assignedDriverId": "9"})
	require.NoError(t, err)

	mine := s.List(apiclient.ResourceOrders, url.Values{"userId": {"42"}})
	require.Len(t, mine, 2)
	assert.Equal(t, int64(1), mine[0]["id"])
	assert.Equal(t, int64(3), mine[1]["id"])

	assigned := s.List(apiclient.ResourceDeliveries, url.Values{"assignedDriverId": {"009"}})
	require.Len(t, assigned, 1)
	assert.Equal(t, int64(3), assigned[0]["id"])

	assert.Empty(t, s.List(apiclient.ResourceOrders, url.Values{"status": {"delivered"}}))
}

func TestStore_DeleteAndIDs(t *testing.T) {
	s := newTestStore()
	s.Seed()

	products := s.List(apiclient.ResourceProducts, nil)
	require.Len(t, products, 5)

	fresh := s.Insert(apiclient.ResourceProducts, Record{"productName": "Avocado", "unitPrice": "0.30"})
	assert.Equal(t, int64(106), fresh["id"])

	require.NoError(t, s.Delete(apiclient.ResourceProducts, "0101"))
	assert.ErrorIs(t, s.Delete(apiclient.ResourceProducts, "101"), ErrNotFound)
	assert.Len(t, s.List(apiclient.ResourceProducts, nil), 5)

	payment := s.Insert(apiclient.ResourcePayments, Record{"orderId": json.Number("1"), "amount": "0.90"})
	id, ok := payment["id"].(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
}
