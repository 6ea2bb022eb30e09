package dto

import (
	"net/http"

	"github.com/duesledger/backend/internal/domain/dues"
)

// Transport error codes. Domain failures keep the code of their DomainError.
const (
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeInvalidJSON       = "INVALID_JSON"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeRouteNotFound     = "ROUTE_NOT_FOUND"
	ErrCodeRequestTooLarge   = "REQUEST_TOO_LARGE"
	ErrCodeRequestInProgress = "REQUEST_IN_PROGRESS"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// Shared domain codes
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeAlreadyExists  = "ALREADY_EXISTS"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeOptimisticLock = "OPTIMISTIC_LOCK_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeValidation:        http.StatusBadRequest,
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeInvalidJSON:       http.StatusBadRequest,
	ErrCodeUnauthenticated:   http.StatusUnauthorized,
	ErrCodeTokenExpired:      http.StatusUnauthorized,
	ErrCodeRouteNotFound:     http.StatusNotFound,
	ErrCodeRequestTooLarge:   http.StatusRequestEntityTooLarge,
	ErrCodeRequestInProgress: http.StatusConflict,
	ErrCodeUnavailable:       http.StatusServiceUnavailable,

	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeAlreadyExists:  http.StatusConflict,
	ErrCodeInvalidInput:   http.StatusBadRequest,
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodeOptimisticLock: http.StatusConflict,

	// Ledger
	dues.CodeInvalidAmount:      http.StatusBadRequest,
	dues.CodeInvalidPeriod:      http.StatusBadRequest,
	dues.CodeInvalidTitle:       http.StatusBadRequest,
	dues.CodeInvalidMode:        http.StatusBadRequest,
	dues.CodeUnauthorized:       http.StatusForbidden,
	dues.CodeDueNotFound:        http.StatusNotFound,
	dues.CodeMemberNotFound:     http.StatusNotFound,
	dues.CodeTransactionMissing: http.StatusNotFound,
	dues.CodeDuplicateDue:       http.StatusConflict,
	dues.CodeReversalConflict:   http.StatusConflict,
	dues.CodeAllocationOverflow: http.StatusUnprocessableEntity,
	dues.CodeStorageError:       http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
