package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// unwrapList accepts a bare array, {"data": [...]} (optionally with "success") or
// {"<resource>": [...]}.
func unwrapList(resource string, status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body for %s list", ErrMalformedResponse, resource)
	}

	switch body[0] {
	case '[':
		return body, nil
	case '{':
	default:
		return nil, fmt.Errorf("%w: %s list is neither an array nor an object", ErrMalformedResponse, resource)
	}

	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(fields, status); err != nil {
		return nil, err
	}

	for _, key := range []string{"data", resource} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if bytes.Equal(raw, []byte("null")) {
			return json.RawMessage("[]"), nil
		}
		if len(raw) == 0 || raw[0] != '[' {
			return nil, fmt.Errorf("%w: %q of %s list is not an array", ErrMalformedResponse, key, resource)
		}
		return raw, nil
	}

	return nil, fmt.Errorf("%w: no array found in %s list envelope", ErrMalformedResponse, resource)
}

// unwrapObject accepts a bare object, {"data": {...}}, {"<resource>": {...}} or
// {"<singular>": {...}}.
func unwrapObject(resource string, status int, body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body for %s", ErrMalformedResponse, resource)
	}
	if body[0] != '{' {
		return nil, fmt.Errorf("%w: %s entity is not an object", ErrMalformedResponse, resource)
	}

	fields, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(fields, status); err != nil {
		return nil, err
	}

	for _, key := range []string{"data", resource, singular(resource)} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil, fmt.Errorf("%w: %q of %s is not an object", ErrMalformedResponse, key, resource)
		}
		return raw, nil
	}

	if _, ok := fields["success"]; ok {
		return nil, fmt.Errorf("%w: %s envelope carries no entity", ErrMalformedResponse, resource)
	}
	return body, nil
}

func decodeFields(body []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return fields, nil
}

// checkSuccess turns {"success": false, "message": "..."} into a RequestFailed.
func checkSuccess(fields map[string]json.RawMessage, status int) error {
	raw, ok := fields["success"]
	if !ok {
		return nil
	}
	var success bool
	if err := json.Unmarshal(raw, &success); err != nil {
		return fmt.Errorf("%w: success flag is not a boolean", ErrMalformedResponse)
	}
	if success {
		return nil
	}
	return &RequestFailed{Status: status, Message: messageOf(fields)}
}

func messageOf(fields map[string]json.RawMessage) string {
	for _, key := range []string{"message", "error"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func singular(resource string) string {
	switch {
	case strings.HasSuffix(resource, "ies"):
		return strings.TrimSuffix(resource, "ies") + "y"
	case strings.HasSuffix(resource, "s"):
		return strings.TrimSuffix(resource, "s")
	}
	return resource
}
