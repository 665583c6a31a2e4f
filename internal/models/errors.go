package models

import (
	"errors"
	"fmt"
)

// Common broker errors
var (
	// Request errors
	ErrInvalidRequest = errors.New("invalid request")

	// Officer and entitlement errors
	ErrOfficerNotFound     = errors.New("officer not found")
	ErrOfficerInactive     = errors.New("officer is not active")
	ErrServiceNotEnabled   = errors.New("service not enabled for plan")
	ErrInsufficientCredits = errors.New("insufficient credits")

	// Provider errors
	ErrServiceNotFound       = errors.New("service not found")
	ErrCredentialNotFound    = errors.New("provider credential not found")
	ErrCredentialInactive    = errors.New("provider credential is inactive")
	ErrUnsupportedProvider   = errors.New("unsupported provider")
	ErrProviderCallFailed    = errors.New("provider call failed")
	ErrMalformedProviderData = errors.New("malformed provider response")

	// Ledger errors
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidCreditAction = errors.New("invalid credit action")
	ErrPlanNotFound        = errors.New("plan not found")

	// Security errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ErrorCode is the stable, machine-readable name of a broker failure
type ErrorCode string

// Error codes for structured error handling
const (
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	ErrCodeAdapterFailure      ErrorCode = "ADAPTER_FAILURE"
	ErrCodePersistenceWarning  ErrorCode = "PERSISTENCE_WARNING"
	ErrCodeInternal            ErrorCode = "INTERNAL"
)

// BrokerError represents a structured error with additional context
type BrokerError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *BrokerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *BrokerError) Unwrap() error {
	return e.Cause
}

// NewBrokerError creates a new BrokerError
func NewBrokerError(code ErrorCode, message string, cause error) *BrokerError {
	return &BrokerError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *BrokerError) WithDetail(key string, value interface{}) *BrokerError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// AsBrokerError extracts a BrokerError from an error chain
func AsBrokerError(err error) (*BrokerError, bool) {
	var be *BrokerError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Common error constructors

func NewInvalidRequestError(field, message string) *BrokerError {
	e := NewBrokerError(ErrCodeInvalidRequest, message, ErrInvalidRequest)
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

func NewUnauthorizedError(officerID string) *BrokerError {
	return NewBrokerError(ErrCodeUnauthorized, "Unauthorized: officer not found or inactive", ErrUnauthorized).
		WithDetail("officer_id", officerID)
}

func NewForbiddenError(serviceID string) *BrokerError {
	return NewBrokerError(ErrCodeForbidden, "Service not enabled for plan", ErrServiceNotEnabled).
		WithDetail("service_id", serviceID)
}

func NewInsufficientCreditsError(required, available int) *BrokerError {
	return NewBrokerError(ErrCodeInsufficientCredits,
		fmt.Sprintf("Insufficient credits. Required: %d, Available: %d", required, available),
		ErrInsufficientCredits).
		WithDetail("required", required).
		WithDetail("available", available)
}

func NewProviderUnavailableError(serviceID string, cause error) *BrokerError {
	return NewBrokerError(ErrCodeProviderUnavailable, "API key not configured or inactive", cause).
		WithDetail("service_id", serviceID)
}

func NewUnsupportedProviderError(serviceName string) *BrokerError {
	return NewBrokerError(ErrCodeUnsupportedProvider, fmt.Sprintf("Unsupported API service: %s", serviceName), ErrUnsupportedProvider).
		WithDetail("service_name", serviceName)
}

func NewPersistenceWarning(operation string, cause error) *BrokerError {
	return NewBrokerError(ErrCodePersistenceWarning, "Persistence operation failed", cause).
		WithDetail("operation", operation)
}
