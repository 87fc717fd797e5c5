package shared

import "errors"

// Sentinel errors shared across packages. HTTP boundaries map them with
// errors.Is, see httpx.RespondError.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCSRFTokenMissing   = errors.New("csrf token missing")
	ErrCSRFTokenMismatch  = errors.New("csrf token mismatch")
	// ErrSessionMissing means a handler ran outside the session middleware.
	ErrSessionMissing = errors.New("session missing")
)
