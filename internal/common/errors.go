// Package common defines shared constants and sentinel errors used across
// client and server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")

	// ErrVersionConflict is returned when the stored row is newer than the
	// incoming one, or a uniqueness constraint rejected it.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnknownTable is returned for table names outside the sync registry.
	ErrUnknownTable = errors.New("unknown table")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
