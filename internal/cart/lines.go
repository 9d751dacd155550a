package cart

import (
	"slices"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
)

// Lines is the ordered content of a cart. Its methods never modify the receiver.
type Lines []LineItem

func (l Lines) index(id ids.ID) int {
	return slices.IndexFunc(l, func(item LineItem) bool {
		return ids.Same(item.ID, id)
	})
}

// Add increments the quantity of an existing line, keeping its price, or appends a new line with
// quantity 1.
func (l Lines) Add(p Product) Lines {
	next := slices.Clone(l)
	if i := next.index(p.ID); i >= 0 {
		next[i].Quantity++
		return next
	}
	return append(next, LineItem{
		ID:          p.ID,
		ProductName: p.Name,
		UnitPrice:   p.UnitPrice,
		ImageURL:    p.ImageURL,
		Quantity:    1,
	})
}

// Decrement lowers the quantity by one and drops the line at zero. The bool is false when id is not
// in the cart.
func (l Lines) Decrement(id ids.ID) (Lines, bool) {
	i := l.index(id)
	if i < 0 {
		return l, false
	}
	if l[i].Quantity <= 1 {
		return slices.Delete(slices.Clone(l), i, i+1), true
	}
	next := slices.Clone(l)
	next[i].Quantity--
	return next, true
}

func (l Lines) Remove(id ids.ID) (Lines, bool) {
	i := l.index(id)
	if i < 0 {
		return l, false
	}
	return slices.Delete(slices.Clone(l), i, i+1), true
}

func (l Lines) UpdatePrice(id ids.ID, price decimal.Decimal) (Lines, bool) {
	i := l.index(id)
	if i < 0 {
		return l, false
	}
	next := slices.Clone(l)
	next[i].UnitPrice = price
	return next, true
}

// Total is the sum of unit price times quantity.
func (l Lines) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (l Lines) Count() int {
	n := 0
	for _, item := range l {
		n += item.Quantity
	}
	return n
}
