package mockapi

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/order"
)

var (
	ErrNotFound      = errors.New("mockapi: record not found")
	ErrInvalidRecord = errors.New("mockapi: invalid record")
)

// Record is one stored entity in its wire form.
type Record map[string]any

// Fields a client may send but never overwrite.
var immutableFields = []string{"id", "createdAt", "orderNumber"}

// Store is the in-memory backend state. Records are kept per resource in insertion order.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]map[string]Record
	order   map[string][]string
	seq     map[string]int64
	// idempotency key -> order id
	keys map[string]string
}

func NewStore() *Store {
	return &Store{
		now:     time.Now,
		records: make(map[string]map[string]Record),
		order:   make(map[string][]string),
		seq:     make(map[string]int64),
		keys:    make(map[string]string),
	}
}

// SetClock replaces the time source used for createdAt and lifecycle timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) List(resource string, filter url.Values) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.order[resource]))
	for _, id := range s.order[resource] {
		rec := s.records[resource][id]
		if matches(rec, filter) {
			out = append(out, maps.Clone(rec))
		}
	}
	return out
}

func (s *Store) Get(resource, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(resource, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
	}
	return maps.Clone(rec), nil
}

// Insert stores rec under a fresh id, or under its own id when it carries one.
func (s *Store) Insert(resource string, rec Record) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.insert(resource, rec))
}

// CreateOrder stores a new order together with its pending delivery. A key already seen returns
// the order it created and replayed=true.
func (s *Store) CreateOrder(rec Record, key string) (created Record, replayed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		if id, ok := s.keys[key]; ok {
			if existing, ok := s.lookup(apiclient.ResourceOrders, id); ok {
				return maps.Clone(existing), true, nil
			}
		}
	}

	if ids.ID(text(rec["userId"])).IsZero() {
		return nil, false, fmt.Errorf("%w: userId is required", ErrInvalidRecord)
	}
	if items, ok := rec["items"].([]any); !ok || len(items) == 0 {
		return nil, false, fmt.Errorf("%w: an order needs at least one item", ErrInvalidRecord)
	}

	rec = maps.Clone(rec)
	if text(rec["status"]) == "" {
		rec["status"] = string(order.StatusPending)
	}
	if text(rec["priority"]) == "" {
		rec["priority"] = string(order.PriorityNormal)
	}
	if key != "" {
		rec["idempotencyKey"] = key
	}
	delete(rec, "id")

	stored := s.insert(apiclient.ResourceOrders, rec)
	stored["orderNumber"] = fmt.Sprintf("ORD-%06d", s.seq[apiclient.ResourceOrders])
	if key != "" {
		s.keys[key] = text(stored["id"])
	}

	s.insert(apiclient.ResourceDeliveries, Record{
		"id":              stored["id"],
		"orderNumber":     stored["orderNumber"],
		"userId":          stored["userId"],
		"totalAmount":     stored["totalAmount"],
		"priority":        stored["priority"],
		"shippingAddress": stored["shippingAddress"],
		"billingAddress":  stored["billingAddress"],
		"status":          string(order.DeliveryPending),
	})
	return maps.Clone(stored), false, nil
}

// Patch merges patch into the stored record. Order and delivery status changes are stamped and
// kept in step with each other.
func (s *Store) Patch(resource, id string, patch Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(resource, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
	}

	for k, v := range patch {
		if !slices.Contains(immutableFields, k) {
			rec[k] = v
		}
	}

	if status, ok := patch["status"]; ok {
		now := s.now().UTC()
		switch resource {
		case apiclient.ResourceOrders:
			s.stampOrder(rec, order.Status(text(status)), now)
			if order.Status(text(status)) == order.StatusCancelled {
				s.cancelDelivery(text(rec["id"]))
			}
		case apiclient.ResourceDeliveries:
			ds := order.DeliveryStatus(text(status))
			if ds == order.DeliveryDelivered {
				rec["deliveredAt"] = now
			}
			s.syncOrder(text(rec["id"]), order.OrderStatusFor(ds), now)
		}
	}
	return maps.Clone(rec), nil
}

func (s *Store) Delete(resource, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.lookup(resource, id)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, resource, id)
	}
	key := text(rec["id"])
	delete(s.records[resource], key)
	for i, v := range s.order[resource] {
		if v == key {
			s.order[resource] = append(s.order[resource][:i:i], s.order[resource][i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) insert(resource string, rec Record) Record {
	if s.records[resource] == nil {
		s.records[resource] = make(map[string]Record)
	}

	rec = maps.Clone(rec)
	id := text(rec["id"])
	if ids.ID(id).IsZero() {
		id = s.nextID(resource)
	} else if n, ok := ids.ID(id).Numeric(); ok && n > s.seq[resource] {
		s.seq[resource] = n
	}

	if n, ok := ids.ID(id).Numeric(); ok {
		id = strconv.FormatInt(n, 10)
		rec["id"] = n
	} else {
		rec["id"] = id
	}
	if _, ok := rec["createdAt"]; !ok {
		rec["createdAt"] = s.now().UTC()
	}

	s.records[resource][id] = rec
	s.order[resource] = append(s.order[resource], id)
	return rec
}

// nextID hands out sequential numeric ids. Payments get UUIDs, as a payment gateway would.
func (s *Store) nextID(resource string) string {
	s.seq[resource]++
	if resource == apiclient.ResourcePayments {
		return uuid.Must(uuid.NewV4()).String()
	}
	return strconv.FormatInt(s.seq[resource], 10)
}

// lookup finds a record by id, treating "7" and "007" as the same numeric id.
func (s *Store) lookup(resource, id string) (Record, bool) {
	if rec, ok := s.records[resource][id]; ok {
		return rec, true
	}
	for key, rec := range s.records[resource] {
		if ids.Same(ids.ID(key), ids.ID(id)) {
			return rec, true
		}
	}
	return nil, false
}

func (s *Store) stampOrder(rec Record, status order.Status, now time.Time) {
	switch status {
	case order.StatusShipped:
		if _, ok := rec["shippedAt"]; !ok {
			rec["shippedAt"] = now
		}
	case order.StatusDelivered:
		if _, ok := rec["shippedAt"]; !ok {
			rec["shippedAt"] = now
		}
		rec["deliveredAt"] = now
	}
}

func (s *Store) syncOrder(id string, status order.Status, now time.Time) {
	rec, ok := s.lookup(apiclient.ResourceOrders, id)
	if !ok || text(rec["status"]) == string(status) {
		return
	}
	rec["status"] = string(status)
	s.stampOrder(rec, status, now)
}

func (s *Store) cancelDelivery(id string) {
	rec, ok := s.lookup(apiclient.ResourceDeliveries, id)
	if !ok || order.DeliveryStatus(text(rec["status"])).IsTerminal() {
		return
	}
	rec["status"] = string(order.DeliveryCancelled)
}

// matches reports whether every filter parameter equals the record field of the same name.
func matches(rec Record, filter url.Values) bool {
	for key, values := range filter {
		got := text(rec[key])
		found := false
		for _, want := range values {
			if ids.Same(ids.ID(got), ids.ID(want)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// text renders a decoded JSON scalar for comparison.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
