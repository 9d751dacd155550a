package mockapi

import (
	"encoding/json"

	"github.com/vasiliy-maslov/grocery-storefront/internal/apiclient"
)

// Seed loads a small catalogue and one account per role. Prices are a mix of JSON strings and
// numbers, like the real backend returns.
func (s *Store) Seed() {
	products := []Record{
		{"id": json.Number("101"), "productName": "Sukuma Wiki (bunch)", "unitPrice": "0.45", "category": "fresh-produce"},
		{"id": json.Number("102"), "productName": "Fresh Milk 500ml", "unitPrice": json.Number("0.60"), "category": "dairy"},
		{"id": json.Number("103"), "productName": "Kenya AA Coffee 250g", "unitPrice": "7.25", "category": "coffee"},
		{"id": json.Number("104"), "productName": "Tilapia Fillet 1kg", "unitPrice": json.Number("9.80"), "category": "meat-seafood"},
		{"id": json.Number("105"), "productName": "Mango (each)", "unitPrice": "0.35", "category": "fresh-produce"},
	}
	for _, p := range products {
		s.Insert(apiclient.ResourceProducts, p)
	}

	users := []Record{
		{"id": json.Number("1"), "email": "admin@example.com", "fullName": "Store Admin", "role": "admin"},
		{"id": json.Number("9"), "email": "driver@example.com", "fullName": "Otieno Driver", "role": "driver"},
		{"id": json.Number("42"), "email": "jane@example.com", "fullName": "Jane Wanjiku", "role": "user",
			"address": "12 Riverside Drive, Nairobi"},
	}
	for _, u := range users {
		s.Insert(apiclient.ResourceUsers, u)
	}
}
