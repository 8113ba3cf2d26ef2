// Package common defines shared constants and sentinel errors used across
// chatrelay components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Messaging-specific errors.
	ErrorSelfMessage = errors.New("cannot send message to yourself")
)
