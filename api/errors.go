package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/busbooking/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{domain.ErrFull, http.StatusConflict, "full"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrDuplicateUser, http.StatusConflict, "duplicate_user"},
	{domain.ErrInvalidSeat, http.StatusBadRequest, "invalid_seat"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{domain.ErrStorage, http.StatusServiceUnavailable, "storage_failure"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError aborts the request with the mapped status. The full error is
// attached to the context for the request logger; server-side failures are
// reported to the caller by category only.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	_ = c.Error(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Code: code})
}

func badRequest(c *gin.Context, message string) {
	writeError(c, &inputError{message: message})
}

type inputError struct {
	message string
}

func (e *inputError) Error() string { return e.message }

func (e *inputError) Unwrap() error { return domain.ErrInvalidInput }
