// Package common defines shared constants and sentinel errors used across
// gophauth layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")
	ErrorDelivery = errors.New("delivery failed")

	// Credential errors. ErrInvalidCredentials and ErrInvalidToken are
	// reported to clients with the same message.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrAccountNotActive   = errors.New("account not active")

	// Password policy errors.
	ErrPasswordReuse = errors.New("password was used before")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
)
