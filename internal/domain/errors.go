package domain

import "errors"

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidType       = errors.New("invalid type: must be match, message, or generic")
	ErrInvalidSession    = errors.New("session id must not be empty")
	ErrInvalidPlatform   = errors.New("invalid platform: must be ios or android")
	ErrInvalidToken      = errors.New("token must not be empty")
	ErrInvalidTitle      = errors.New("title must not be empty")
	ErrInvalidEvent      = errors.New("event id must not be empty")
	ErrInvalidCountry    = errors.New("country must not be empty")
	ErrUnknownPartition  = errors.New("unknown partition")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnauthorized      = errors.New("missing or invalid shared secret")
	ErrSuppressed        = errors.New("suppressed by circuit breaker")
	ErrMuted             = errors.New("recipient has muted the sender")
	ErrNoTokens          = errors.New("no active push tokens")
)
