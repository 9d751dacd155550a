package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/grocery-storefront/internal/storage"
)

const keyPrefix = "cart-items-"

// Repository persists the lines of one scope.
type Repository interface {
	Load(ctx context.Context, scope string) (Lines, error)
	Save(ctx context.Context, scope string, lines Lines) error
	Delete(ctx context.Context, scope string) error
}

// StoreRepository keeps each cart as a JSON array under "cart-items-<scope>".
type StoreRepository struct {
	store storage.Store
}

func NewRepository(store storage.Store) *StoreRepository {
	return &StoreRepository{store: store}
}

// Key returns the storage key of a scope's cart.
func Key(scope string) string {
	return keyPrefix + scope
}

// Load returns an empty cart when nothing is stored and ErrCorruptCart when the record cannot be
// decoded. Lines that could not have been written by the
// engine (no id, quantity below 1, negative price) are dropped.
func (r *StoreRepository) Load(ctx context.Context, scope string) (Lines, error) {
	raw, err := r.store.Get(ctx, Key(scope))
	if errors.Is(err, storage.ErrNotFound) {
		return Lines{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: load %s: %w", scope, err)
	}

	var stored Lines
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCart, scope, err)
	}

	lines := make(Lines, 0, len(stored))
	for _, item := range stored {
		if item.ID.IsZero() || item.Quantity < 1 || item.UnitPrice.IsNegative() {
			log.Warn().Str("scope", scope).Stringer("product_id", item.ID).Msg("cart: dropping invalid stored line")
			continue
		}
		if lines.index(item.ID) >= 0 {
			continue
		}
		lines = append(lines, item)
	}
	return lines, nil
}

func (r *StoreRepository) Save(ctx context.Context, scope string, lines Lines) error {
	if lines == nil {
		lines = Lines{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("cart: encode %s: %w", scope, err)
	}
	if err := r.store.Set(ctx, Key(scope), string(raw)); err != nil {
		return fmt.Errorf("cart: save %s: %w", scope, err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, scope string) error {
	if err := r.store.Delete(ctx, Key(scope)); err != nil {
		return fmt.Errorf("cart: delete %s: %w", scope, err)
	}
	return nil
}
