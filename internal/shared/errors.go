package shared

import "errors"

var (
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrSessionMissing is returned when a handler runs outside the session middleware.
	ErrSessionMissing = errors.New("session missing")
)
