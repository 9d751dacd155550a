package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned for a 2xx response whose body matches no known envelope.
var ErrMalformedResponse = errors.New("apiclient: malformed response")

// RequestFailed is a non-2xx response, or a 2xx response carrying {"success": false}.
type RequestFailed struct {
	Status  int
	Message string
}

func (e *RequestFailed) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// IsAuth reports an authorization-class failure. Those are never retried.
func (e *RequestFailed) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Transient reports whether a read may be retried after this failure.
func (e *RequestFailed) Transient() bool {
	switch {
	case e.IsAuth():
		return false
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// StatusOf returns the HTTP status of a RequestFailed anywhere in err's chain, or 0.
func StatusOf(err error) int {
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Status
	}
	return 0
}
