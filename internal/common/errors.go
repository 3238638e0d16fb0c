package common

import "errors"

// Error kinds shared by every layer. Callers wrap them with fmt.Errorf("%w: ...")
// and the HTTP layer maps them to status codes.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrModel           = errors.New("model error")
	ErrTooManyAttempts = errors.New("too many attempts")
)
