package response

import (
	"net/http"

	"learnhub-auth/internal/domain"
)

// Business codes mirror HTTP semantics; 0 means success.
const (
	CodeOK              = 0
	CodeBadRequest      = http.StatusBadRequest
	CodeUnauthorized    = http.StatusUnauthorized
	CodeForbidden       = http.StatusForbidden
	CodeNotFound        = http.StatusNotFound
	CodeConflict        = http.StatusConflict
	CodeRequestTooLarge = http.StatusRequestEntityTooLarge
	CodeUnprocessable   = http.StatusUnprocessableEntity
	CodeTooManyRequests = http.StatusTooManyRequests
	CodeServerError     = http.StatusInternalServerError
	CodeUnavailable     = http.StatusServiceUnavailable
	CodeTimeout         = http.StatusGatewayTimeout
)

// StatusFor maps a domain failure kind to its HTTP status.
func StatusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return CodeBadRequest
	case domain.KindNotFound:
		return CodeNotFound
	case domain.KindConflict:
		return CodeConflict
	case domain.KindUnauthorized:
		return CodeUnauthorized
	case domain.KindForbidden:
		return CodeForbidden
	case domain.KindInvariant:
		return CodeUnprocessable
	default:
		return CodeServerError
	}
}
