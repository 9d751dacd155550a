package order

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
)

// Patch is a partial update in wire form.
type Patch map[string]any

// systemFields are assigned by the backend and never sent in an update.
var systemFields = []string{
	"id",
	"userId", "user_id",
	"createdAt", "created_at",
	"shippedAt", "shipped_at",
	"deliveredAt", "delivered_at",
}

const (
	fieldStatus        = "status"
	fieldPriority      = "priority"
	fieldDriver        = "assignedDriverId"
	fieldFailureReason = "failureReason"
	fieldDeliveryNote  = "deliveryNote"
	fieldLocation      = "location"
)

// Sanitize returns a copy of p without system-assigned fields.
func (p Patch) Sanitize() Patch {
	out := maps.Clone(p)
	if out == nil {
		out = Patch{}
	}
	for _, key := range systemFields {
		delete(out, key)
	}
	return out
}

func (p Patch) stringField(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return fmt.Sprint(v), true
}

// vocabField is stringField for fields that must hold a vocabulary value. A null counts as present
// and yields "", which no vocabulary accepts.
func (p Patch) vocabField(key string) (string, bool) {
	if v, ok := p[key]; ok && v == nil {
		return "", true
	}
	return p.stringField(key)
}

func (p Patch) priority() (Priority, bool, error) {
	v, ok := p.vocabField(fieldPriority)
	if !ok {
		return "", false, nil
	}
	priority, err := ParsePriority(v)
	return priority, true, err
}

// ValidateOrderPatch strips system fields and checks the status and priority vocabularies. A driver
// can only be set through a delivery, so assignedDriverId is dropped too.
func ValidateOrderPatch(p Patch) (Patch, *Status, error) {
	clean := p.Sanitize()
	delete(clean, fieldDriver)

	if _, _, err := clean.priority(); err != nil {
		return nil, nil, err
	}

	v, ok := clean.vocabField(fieldStatus)
	if !ok {
		return clean, nil, nil
	}
	status, err := ParseStatus(v)
	if err != nil {
		return nil, nil, err
	}
	clean[fieldStatus] = status
	return clean, &status, nil
}

// ValidateDeliveryPatch strips system fields and runs every check that needs no current state: the
// status and priority vocabularies, the failure reason and the location range.
func ValidateDeliveryPatch(p Patch) (Patch, *DeliveryStatus, error) {
	clean := p.Sanitize()

	if _, _, err := clean.priority(); err != nil {
		return nil, nil, err
	}

	if _, ok := clean[fieldLocation]; ok {
		loc, err := parseLocation(clean[fieldLocation])
		if err != nil {
			return nil, nil, err
		}
		clean[fieldLocation] = loc
	}

	v, ok := clean.vocabField(fieldStatus)
	if !ok {
		return clean, nil, nil
	}
	status, err := ParseDeliveryStatus(v)
	if err != nil {
		return nil, nil, err
	}
	clean[fieldStatus] = status

	if status == DeliveryFailed {
		reason, _ := clean.stringField(fieldFailureReason)
		if strings.TrimSpace(reason) == "" {
			return nil, nil, ErrMissingFailureReason
		}
	}
	return clean, &status, nil
}

func parseLocation(v any) (Location, error) {
	switch loc := v.(type) {
	case Location:
		return checkLocation(loc)
	case *Location:
		if loc == nil {
			return Location{}, fmt.Errorf("%w: location is null", ErrInvalidLocation)
		}
		return checkLocation(*loc)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	var decoded struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if decoded.Latitude == nil || decoded.Longitude == nil {
		return Location{}, fmt.Errorf("%w: latitude and longitude are required", ErrInvalidLocation)
	}
	return checkLocation(Location{Latitude: *decoded.Latitude, Longitude: *decoded.Longitude})
}

func checkLocation(loc Location) (Location, error) {
	if !loc.Valid() {
		return Location{}, fmt.Errorf("%w: (%g, %g) out of range", ErrInvalidLocation, loc.Latitude, loc.Longitude)
	}
	return loc, nil
}
