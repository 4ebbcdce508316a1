package application

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed request field. Reported 400,
	// raised before any store access.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration marks an absent external credential. Reported 500.
	ErrConfiguration = errors.New("configuration missing")

	// ErrUnauthorized is returned uniformly for admin secret mismatches.
	ErrUnauthorized = errors.New("unauthorized")

	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by Store.Save when the document version moved
	// underneath the writer.
	ErrConflict = errors.New("store version conflict")

	// ErrUnderage rejects KYC approval for applicants under 16.
	ErrUnderage = errors.New("underage")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// GatewayError carries the provider's rejection verbatim for operator
// diagnosis. Never retried.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// PaymentIncompleteError means the capture call succeeded at the transport
// level but the provider did not report COMPLETED. No license is minted.
type PaymentIncompleteError struct {
	Status string
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("payment not completed, status %s", e.Status)
}
