package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches domain errors by code so wrapped copies compare equal to the sentinels below
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error carrying an underlying cause
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInvalidTransition   = NewDomainError("INVALID_TRANSITION", "Record no longer matches the expected status, reload and try again")
	ErrDocumentLocked      = NewDomainError("PROCESSING_LOCKED", "Document number is already being processed and cannot receive new or edited lines")
	ErrDuplicateLine       = NewDomainError("EXACT_DUPLICATE", "Document number already carries this product")
	ErrInvalidSecret       = NewDomainError("INVALID_SECRET", "Confirmation secret is incorrect")
	ErrStorePermission     = NewDomainError("STORE_PERMISSION_DENIED", "Document store rejected the request, check the service credentials")
	ErrStoreUnavailable    = NewDomainError("STORE_UNAVAILABLE", "Document store is unreachable, check the service connectivity settings")
)

// IsStoreConfigurationError reports whether err means the operator has to fix store access
// rather than the data being wrong.
func IsStoreConfigurationError(err error) bool {
	return errors.Is(err, ErrStorePermission) || errors.Is(err, ErrStoreUnavailable)
}
