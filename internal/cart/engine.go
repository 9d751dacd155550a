package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
	"github.com/vasiliy-maslov/grocery-storefront/internal/session"
)

// SessionSource is the part of the session the engine depends on.
type SessionSource interface {
	Identity() (session.Identity, bool)
	ScopeKey() string
	Subscribe(l session.Listener) (unsubscribe func())
}

// OrderCreator creates backend resources. *apiclient.Client satisfies it.
type OrderCreator interface {
	Create(ctx context.Context, resource string, payload, out any) error
}

// Engine is the cart of the current session scope. Every mutation is applied in memory and then
// written through the repository before it returns.
type Engine struct {
	mu          sync.Mutex
	repo        Repository
	session     SessionSource
	orders      OrderCreator
	newKey      func() (string, error)
	unsubscribe func()

	scope   string
	lines   Lines
	version uint64

	attempt *checkoutAttempt
	failure error
	// loadErr is set while the stored cart of scope could not be read. Mutations are refused until
	// a load succeeds so they never overwrite it.
	loadErr error
}

type checkoutAttempt struct {
	key     string
	version uint64
}

// NewEngine loads the cart of the current scope and follows later scope changes.
func NewEngine(ctx context.Context, repo Repository, sess SessionSource, orders OrderCreator) *Engine {
	e := &Engine{
		repo:    repo,
		session: sess,
		orders:  orders,
		newKey:  newIdempotencyKey,
	}
	e.reload(ctx, sess.ScopeKey())
	e.unsubscribe = sess.Subscribe(func(ctx context.Context, change session.Change) {
		e.reload(ctx, change.Current)
	})
	return e
}

// Close stops following scope changes.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
}

// reload replaces the in-memory cart with the stored cart of scope. It runs inside the session's
// Login and Logout, so the old cart is gone before they return.
func (e *Engine) reload(ctx context.Context, scope string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lines, err := e.repo.Load(ctx, scope)
	e.loadErr = nil
	switch {
	case errors.Is(err, ErrCorruptCart):
		log.Warn().Err(err).Str("scope", scope).Msg("cart: discarding unreadable stored cart")
		lines = Lines{}
	case err != nil:
		log.Error().Err(err).Str("scope", scope).Msg("cart: failed to load cart, changes blocked until it can be read")
		lines = Lines{}
		e.loadErr = err
	}

	e.scope = scope
	e.lines = lines
	e.version++
	e.attempt = nil
	e.failure = nil

	log.Debug().Str("scope", scope).Int("lines", len(lines)).Msg("cart: scope loaded")
}

func (e *Engine) Add(ctx context.Context, p Product) error {
	if p.ID.IsZero() {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if p.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidPrice, p.UnitPrice)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	e.apply(e.lines.Add(p))
	log.Debug().Str("scope", e.scope).Stringer("product_id", p.ID).Msg("cart: item added")
	return e.save(ctx)
}

// Decrement is a no-op without a write when id is not in the cart.
func (e *Engine) Decrement(ctx context.Context, id ids.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	next, changed := e.lines.Decrement(id)
	if !changed {
		return nil
	}
	e.apply(next)
	return e.save(ctx)
}

func (e *Engine) Remove(ctx context.Context, id ids.ID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	next, changed := e.lines.Remove(id)
	if !changed {
		return nil
	}
	e.apply(next)
	return e.save(ctx)
}

// UpdatePrice replaces the unit price of one line after the product price was refreshed.
func (e *Engine) UpdatePrice(ctx context.Context, id ids.ID, price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: %s is negative", ErrInvalidPrice, price)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	next, changed := e.lines.UpdatePrice(id, price)
	if !changed {
		return nil
	}
	e.apply(next)
	return e.save(ctx)
}

// Clear empties the cart and deletes its stored record.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	return e.clear(ctx)
}

func (e *Engine) clear(ctx context.Context) error {
	e.apply(Lines{})
	if err := e.repo.Delete(ctx, e.scope); err != nil {
		log.Error().Err(err).Str("scope", e.scope).Msg("cart: failed to delete stored cart")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (e *Engine) Lines() Lines {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(Lines{}, e.lines...)
}

func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Total()
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Count()
}

// Scope returns the scope key the cart currently belongs to.
func (e *Engine) Scope() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scope
}

// ensureLoaded retries a failed load of the current scope.
func (e *Engine) ensureLoaded(ctx context.Context) error {
	if e.loadErr == nil {
		return nil
	}

	lines, err := e.repo.Load(ctx, e.scope)
	if errors.Is(err, ErrCorruptCart) {
		log.Warn().Err(err).Str("scope", e.scope).Msg("cart: discarding unreadable stored cart")
		lines, err = Lines{}, nil
	}
	if err != nil {
		return fmt.Errorf("%w: stored cart of %q could not be read: %w", ErrPersist, e.scope, err)
	}

	e.loadErr = nil
	e.apply(lines)
	log.Info().Str("scope", e.scope).Int("lines", len(lines)).Msg("cart: stored cart recovered")
	return nil
}

func (e *Engine) apply(next Lines) {
	e.lines = next
	e.version++
}

func (e *Engine) save(ctx context.Context) error {
	if err := e.repo.Save(ctx, e.scope, e.lines); err != nil {
		log.Error().Err(err).Str("scope", e.scope).Msg("cart: failed to persist cart")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
