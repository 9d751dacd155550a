package cart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/grocery-storefront/internal/ids"
)

// Product is what the storefront adds to a cart. Build it with NewProduct so the price is parsed once.
type Product struct {
	ID        ids.ID
	Name      string
	UnitPrice decimal.Decimal
	ImageURL  string
}

// NewProduct validates the product and normalizes price, which may be a number, a numeric string or
// a decimal.
func NewProduct(id ids.ID, name string, price any, imageURL string) (Product, error) {
	if id.IsZero() {
		return Product{}, fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}

	unitPrice, err := ParsePrice(price)
	if err != nil {
		return Product{}, err
	}

	return Product{
		ID:        id,
		Name:      name,
		UnitPrice: unitPrice,
		ImageURL:  imageURL,
	}, nil
}

// ParsePrice converts a price in any of the shapes the backend sends into a non-negative decimal.
func ParsePrice(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)

	switch p := v.(type) {
	case decimal.Decimal:
		d = p
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(p))
	case json.Number:
		d, err = decimal.NewFromString(p.String())
	case float64:
		d = decimal.NewFromFloat(p)
	case float32:
		d = decimal.NewFromFloat32(p)
	case int:
		d = decimal.NewFromInt(int64(p))
	case int64:
		d = decimal.NewFromInt(p)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidPrice, v)
	}

	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s is negative", ErrInvalidPrice, d)
	}
	return d, nil
}

// LineItem is one product in a cart. Quantity is always at least 1.
type LineItem struct {
	ID          ids.ID          `json:"id"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Quantity    int             `json:"quantity"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
