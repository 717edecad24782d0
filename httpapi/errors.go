package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/Keksclan/linkSquirrel/pagerpc"
	"google.golang.org/grpc/codes"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

const (
	ErrAuthMissing       ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid       ErrorCode = "AUTH_INVALID"
	ErrAuthForbidden     ErrorCode = "AUTH_FORBIDDEN"
	ErrValidationInvalid ErrorCode = "VALIDATION_INVALID_VALUE"
	ErrValidationJSON    ErrorCode = "VALIDATION_INVALID_JSON"
	ErrResourceNotFound  ErrorCode = "RESOURCE_NOT_FOUND"
	ErrRateLimitGlobal   ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP       ErrorCode = "RATE_LIMIT_IP"
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"
	ErrRequestCanceled   ErrorCode = "REQUEST_CANCELED"
	ErrMethodNotAllowed  ErrorCode = "METHOD_NOT_ALLOWED"
	ErrRouteNotFound     ErrorCode = "ROUTE_NOT_FOUND"
)

// Error is the body of every error response.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorResponse is the top-level error response wrapper.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// writeError writes a structured error response carrying the request ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, msg string) {
	writeJSON(w, status, ErrorResponse{Error: &Error{
		Code:      code,
		Message:   msg,
		RequestID: contextx.RequestIDFromContext(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error to a response status and code.
func classify(err error) (int, ErrorCode) {
	switch pagerpc.Code(err) {
	case codes.NotFound:
		return http.StatusNotFound, ErrResourceNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest, ErrValidationInvalid
	case codes.PermissionDenied:
		return http.StatusForbidden, ErrAuthForbidden
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout, ErrSystemTimeout
	case codes.Canceled:
		return 499, ErrRequestCanceled
	case codes.Unavailable:
		return http.StatusServiceUnavailable, ErrSystemUnavailable
	default:
		return http.StatusInternalServerError, ErrSystemInternal
	}
}
