package types

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the services and mapped to HTTP status by the handlers
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrValidation              = errors.New("invalid input")
	ErrInvalidTransition       = errors.New("invalid review transition")
	ErrChecklistIncomplete     = errors.New("checklist incomplete")
	ErrRejectionReasonRequired = errors.New("rejection reason required")
	ErrPayloadTooLarge         = errors.New("payload too large")
)

// CustomError carries an HTTP status and a machine readable type
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Validationf wraps ErrValidation with a formatted reason
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted subject
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
