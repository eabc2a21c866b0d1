package endpoints

import (
	"context"
	"errors"
	"net/http"

	"sysmon-api/internal/domain"
)

const (
	API_SUCCESS = iota + 303000 // 303000
	API_FAILURE                 // 303001 - Generic API failure
)

const (
	ROUTE_NOT_FOUND      = iota + 101 // 101 - No such endpoint
	INVALID_REQUEST_BODY              // 102 - Body empty, not JSON, wrong shape or out-of-range values
	INVALID_PARAMETERS                // 103 - Invalid URL or query parameters
	UNKNOWN_CATEGORY                  // 104 - Category is not cpu, ram or procesos
	REQUEST_CANCELLED                 // 105 - Request was cancelled by the client
	PERSISTENCE_FAILURE               // 106 - Database read or write failed mid-operation
	DATABASE_UNAVAILABLE              // 107 - Database unreachable or request deadline exceeded
	METHOD_NOT_ALLOWED                // 108 - Wrong HTTP method for the endpoint
)

var (
	ErrRouteNotFound     = errors.New("endpoint not found")
	ErrInvalidParameters = errors.New("invalid limit parameter; must be a non-negative integer")
	ErrUnknownCategory   = errors.New("unknown metric category; expected cpu, ram or procesos")
	ErrRequestCancelled  = errors.New("request cancelled by client")
	ErrMethodNotAllowed  = errors.New("method not allowed")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	var (
		verr *domain.ValidationError
		cerr *domain.ConnectionError
		perr *domain.PersistenceError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, context.DeadlineExceeded):
		return DATABASE_UNAVAILABLE
	case errors.As(err, &verr):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrUnknownCategory):
		return UNKNOWN_CATEGORY
	case errors.Is(err, ErrRouteNotFound):
		return ROUTE_NOT_FOUND
	case errors.Is(err, ErrMethodNotAllowed):
		return METHOD_NOT_ALLOWED
	case errors.As(err, &cerr):
		return DATABASE_UNAVAILABLE
	case errors.As(err, &perr):
		return PERSISTENCE_FAILURE
	default:
		return API_FAILURE
	}
}

// GetHTTPStatus maps an error to the response status.
func GetHTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case API_SUCCESS:
		return http.StatusOK
	case REQUEST_CANCELLED:
		return http.StatusRequestTimeout
	case INVALID_REQUEST_BODY, INVALID_PARAMETERS:
		return http.StatusBadRequest
	case UNKNOWN_CATEGORY, ROUTE_NOT_FOUND:
		return http.StatusNotFound
	case METHOD_NOT_ALLOWED:
		return http.StatusMethodNotAllowed
	case DATABASE_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorKind labels ingestion failures for metrics.
func errorKind(err error) string {
	switch GetErrorCode(err) {
	case INVALID_REQUEST_BODY:
		return "validation"
	case DATABASE_UNAVAILABLE:
		return "connection"
	case PERSISTENCE_FAILURE:
		return "persistence"
	case REQUEST_CANCELLED:
		return "cancelled"
	default:
		return "internal"
	}
}
