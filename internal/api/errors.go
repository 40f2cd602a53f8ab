package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var (
	// ErrTransport matches every failure to complete a round trip.
	ErrTransport = errors.New("transport failure")

	// ErrDecode matches a 2xx response whose body could not be decoded.
	ErrDecode = errors.New("decode response")
)

// TransportError reports a request that never produced a response.
// errors.Is matches both ErrTransport and the underlying cause.
type TransportError struct {
	Route string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Route, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// StatusError reports a non-2xx response. Detail is the backend's
// {"detail": ...} message when present, otherwise the raw body.
type StatusError struct {
	Route      string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: status %d", e.Route, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Route, e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is a 404 StatusError, which the backend
// returns for unknown or expired sessions.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 404
}

// maxDetail caps a detail in terminal cells.
const maxDetail = 512

func parseDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		// Validation errors arrive as a list of objects.
		var compact bytes.Buffer
		if err := json.Compact(&compact, envelope.Detail); err == nil {
			return truncate(compact.String())
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	return ansi.Truncate(s, maxDetail, "...")
}
