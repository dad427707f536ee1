package db

import "errors"

// Sentinel errors the HTTP layer maps onto status codes. Repositories wrap
// them with %w so callers use errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrGone      = errors.New("expired")
	ErrForbidden = errors.New("forbidden")
)
