// Package ids holds the identifier type shared by carts, orders and sessions.
//
// The backend is not consistent about identifier encoding: the same product or user id can arrive
// as a JSON number in one response and as a string in another. ID accepts both and always
// re-encodes numeric ids as JSON numbers.
package ids

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is a product, order or user identifier.
type ID string

// FromInt builds an ID from an integer id.
func FromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is empty.
func (id ID) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

// Numeric returns the id as an integer when it is one.
func (id ID) Numeric() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(id)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Same compares two ids, treating "42" and "042" as the same numeric id.
func Same(a, b ID) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	na, okA := a.Numeric()
	nb, okB := b.Numeric()
	if okA && okB {
		return na == nb
	}
	return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, ok := id.Numeric(); ok && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("ids: decode string id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ids: id must be a string or a number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}
