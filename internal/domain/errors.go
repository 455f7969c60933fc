package domain

import (
	"errors"
	"fmt"
)

// ErrMalformedPrediction is returned when the predictor answers 2xx with a
// body that is not a list of prediction items.
var ErrMalformedPrediction = errors.New("malformed prediction response")

// Error types for consistent error handling across the BFA.

// ErrStoreUnavailable indicates a record store query failed.
// It is fatal to the whole report.
type ErrStoreUnavailable struct {
	Query string
	Err   error
}

func (e *ErrStoreUnavailable) Error() string {
	return fmt.Sprintf("record store unavailable [%s]: %v", e.Query, e.Err)
}

func (e *ErrStoreUnavailable) Unwrap() error {
	return e.Err
}

// ErrPredictionUnavailable describes why the predictor could not be used.
// The prediction gateway never returns it to callers; it only logs it.
type ErrPredictionUnavailable struct {
	Reason string
	Err    error
}

func (e *ErrPredictionUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("prediction unavailable: %s", e.Reason)
	}
	return fmt.Sprintf("prediction unavailable: %s: %v", e.Reason, e.Err)
}

func (e *ErrPredictionUnavailable) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrUpstreamStatus is a non-2xx answer from an upstream HTTP service.
type ErrUpstreamStatus struct {
	Service    string
	StatusCode int
}

func (e *ErrUpstreamStatus) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrUnauthorized indicates a missing or invalid bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates an authenticated caller asked for another user's data.
type ErrForbidden struct {
	UserID string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("access to user %s denied", e.UserID)
}
