package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthExpired means the backend rejected the credentials after one refresh attempt.
var ErrAuthExpired = errors.New("apiclient: authentication expired")

// NetworkError is returned when no response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("apiclient: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("apiclient: %s %s: status %d", e.Method, e.Path, e.Status)
	if detail := e.Detail(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// Detail extracts the backend's error message from the body when present.
func (e *HTTPError) Detail() string {
	if len(e.Body) == 0 {
		return ""
	}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		var text string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &text) == nil && text != "" {
			return text
		}
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Detail) > 0 {
			return string(payload.Detail)
		}
		return ""
	}
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsNetwork reports whether err means the backend could not be reached.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsAuthExpired reports whether the caller should be sent back to the login page.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
