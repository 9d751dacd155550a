package http_test

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/grocery-storefront/internal/cart"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

type MockSession struct {
	mock.Mock
}

func (m *MockSession) Login(ctx context.Context, identity session.Identity, token string) error {
	return m.Called(ctx, identity, token).Error(0)
}

func (m *MockSession) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockSession) Update(ctx context.Context, profile session.Identity) (session.Identity, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(session.Identity), args.Error(1)
}

func (m *MockSession) Identity() (session.Identity, bool) {
	args := m.Called()
	return args.Get(0).(session.Identity), args.Bool(1)
}

type MockCartEngine struct {
	mock.Mock
}

func (m *MockCartEngine) Add(ctx context.Context, p cart.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockCartEngine) Decrement(ctx context.Context, id ids.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCartEngine) Remove(ctx context.Context, id ids.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCartEngine) UpdatePrice(ctx context.Context, id ids.ID, price decimal.Decimal) error {
	return m.Called(ctx, id, price).Error(0)
}

func (m *MockCartEngine) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockCartEngine) Checkout(ctx context.Context, station *cart.PickupStation) (*order.Order, error) {
	args := m.Called(ctx, station)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockCartEngine) AcknowledgeCheckoutFailure() {
	m.Called()
}

func (m *MockCartEngine) CheckoutFailure() error {
	return m.Called().Error(0)
}

func (m *MockCartEngine) Lines() cart.Lines {
	return m.Called().Get(0).(cart.Lines)
}

func (m *MockCartEngine) Total() decimal.Decimal {
	return m.Called().Get(0).(decimal.Decimal)
}

func (m *MockCartEngine) Count() int {
	return m.Called().Int(0)
}

func (m *MockCartEngine) Scope() string {
	return m.Called().String(0)
}

// expectSnapshot stubs the read accessors used to build every cart response.
func (m *MockCartEngine) expectSnapshot(lines cart.Lines, failure error) {
	m.On("Scope").Return("42").Maybe()
	m.On("Lines").Return(lines).Maybe()
	m.On("Total").Return(lines.Total()).Maybe()
	m.On("Count").Return(lines.Count()).Maybe()
	m.On("CheckoutFailure").Return(failure).Maybe()
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) orderResult(args mock.Arguments) (*order.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) deliveryResult(args mock.Arguments) (*order.Delivery, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Delivery), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, id ids.ID) (*order.Order, error) {
	return m.orderResult(m.Called(ctx, id))
}

func (m *MockOrderService) ListOrders(ctx context.Context, filter url.Values) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) ListOrdersForUser(ctx context.Context, userID ids.ID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrder(ctx context.Context, id ids.ID, patch order.Patch) (*order.Order, error) {
	return m.orderResult(m.Called(ctx, id, patch))
}

func (m *MockOrderService) UpdateOrderStatus(ctx context.Context, id ids.ID, status order.Status) (*order.Order, error) {
	return m.orderResult(m.Called(ctx, id, status))
}

func (m *MockOrderService) UpdateOrderPriority(ctx context.Context, id ids.ID, priority order.Priority) (*order.Order, error) {
	return m.orderResult(m.Called(ctx, id, priority))
}

func (m *MockOrderService) CancelOrder(ctx context.Context, id ids.ID) (*order.Order, error) {
	return m.orderResult(m.Called(ctx, id))
}

func (m *MockOrderService) GetDelivery(ctx context.Context, id ids.ID) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id))
}

func (m *MockOrderService) ListDeliveriesForDriver(ctx context.Context, driverID ids.ID) ([]order.Delivery, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Delivery), args.Error(1)
}

func (m *MockOrderService) UpdateDelivery(ctx context.Context, id ids.ID, patch order.Patch) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id, patch))
}

func (m *MockOrderService) UpdateDeliveryStatus(ctx context.Context, id ids.ID, status order.DeliveryStatus) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id, status))
}

func (m *MockOrderService) FailDelivery(ctx context.Context, id ids.ID, reason string) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id, reason))
}

func (m *MockOrderService) CompleteDelivery(ctx context.Context, id ids.ID, note string) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id, note))
}

func (m *MockOrderService) AssignDriver(ctx context.Context, id ids.ID, driverID ids.ID) (order.AssignResult, error) {
	args := m.Called(ctx, id, driverID)
	return args.Get(0).(order.AssignResult), args.Error(1)
}

func (m *MockOrderService) UpdateLocation(ctx context.Context, id ids.ID, loc order.Location) (*order.Delivery, error) {
	return m.deliveryResult(m.Called(ctx, id, loc))
}

type stubActive struct {
	deliveries []order.Delivery
	at         time.Time
}

func (s stubActive) Active() ([]order.Delivery, time.Time) { return s.deliveries, s.at }
