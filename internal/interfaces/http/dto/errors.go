package dto

import (
	"net/http"
	"strings"
)

// Error codes returned to clients. Domain codes are exposed with the ERR_ prefix.
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeValidation  = "ERR_VALIDATION"
	ErrCodeBadRequest  = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	ErrCodeNotFound    = "ERR_NOT_FOUND"
	ErrCodeForbidden   = "ERR_FORBIDDEN"
	ErrCodeTooLarge    = "ERR_REQUEST_TOO_LARGE"

	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInvalidTransition   = "ERR_INVALID_TRANSITION"
	ErrCodeProcessingLocked    = "ERR_PROCESSING_LOCKED"
	ErrCodeExactDuplicate      = "ERR_EXACT_DUPLICATE"
	ErrCodeDispositionSet      = "ERR_DISPOSITION_ALREADY_SET"
	ErrCodeCollectionEmpty     = "ERR_COLLECTION_EMPTY"
	ErrCodeInvalidSecret       = "ERR_INVALID_SECRET"
	ErrCodeStorePermission     = "ERR_STORE_PERMISSION_DENIED"
	ErrCodeStoreUnavailable    = "ERR_STORE_UNAVAILABLE"
	ErrCodeNumberUnavailable   = "ERR_NUMBER_UNAVAILABLE"

	ErrCodeInvalidID          = "ERR_INVALID_ID"
	ErrCodeInvalidStatus      = "ERR_INVALID_STATUS"
	ErrCodeInvalidQuantity    = "ERR_INVALID_QUANTITY"
	ErrCodeInvalidProduct     = "ERR_INVALID_PRODUCT"
	ErrCodeInvalidDisposition = "ERR_INVALID_DISPOSITION"
	ErrCodeInvalidDate        = "ERR_INVALID_DATE"
	ErrCodeInvalidSplit       = "ERR_INVALID_SPLIT"
	ErrCodeInvalidAction      = "ERR_INVALID_ACTION"
	ErrCodeInvalidFamily      = "ERR_INVALID_FAMILY"
	ErrCodeInvalidPath        = "ERR_INVALID_PATH"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,
	ErrCodeNotFound:    http.StatusNotFound,
	ErrCodeForbidden:   http.StatusForbidden,
	ErrCodeTooLarge:    http.StatusRequestEntityTooLarge,

	ErrCodeInvalidInput:       http.StatusBadRequest,
	ErrCodeInvalidID:          http.StatusBadRequest,
	ErrCodeInvalidStatus:      http.StatusBadRequest,
	ErrCodeInvalidQuantity:    http.StatusBadRequest,
	ErrCodeInvalidProduct:     http.StatusBadRequest,
	ErrCodeInvalidDisposition: http.StatusBadRequest,
	ErrCodeInvalidDate:        http.StatusBadRequest,
	ErrCodeInvalidSplit:       http.StatusBadRequest,
	ErrCodeInvalidAction:      http.StatusBadRequest,
	ErrCodeInvalidFamily:      http.StatusBadRequest,
	ErrCodeInvalidPath:        http.StatusBadRequest,

	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeCollectionEmpty: http.StatusUnprocessableEntity,

	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidTransition:   http.StatusConflict,
	ErrCodeProcessingLocked:    http.StatusConflict,
	ErrCodeExactDuplicate:      http.StatusConflict,
	ErrCodeDispositionSet:      http.StatusConflict,

	ErrCodeInvalidSecret: http.StatusForbidden,

	ErrCodeStorePermission:   http.StatusServiceUnavailable,
	ErrCodeStoreUnavailable:  http.StatusServiceUnavailable,
	ErrCodeNumberUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode converts a domain error code (e.g. "NOT_FOUND") to the
// client-facing form ("ERR_NOT_FOUND"). Already prefixed codes pass through.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeInternal
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
