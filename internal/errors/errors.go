package errors

import (
	"errors"
	"net/http"
)

// Domain errors returned by the booking core. Handlers map them to HTTP
// status codes with StatusFor; services wrap them with fmt.Errorf("...: %w").
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("date range conflicts with an existing booking")
	ErrInvalidState    = errors.New("transition not allowed from current status")
	ErrPolicy          = errors.New("blocked by booking policy")
	ErrForbidden       = errors.New("actor not allowed to perform this action")
	ErrNotCompleted    = errors.New("booking is not completed")
	ErrDuplicateReview = errors.New("booking already has a review")
	ErrNotFound        = errors.New("not found")
	ErrStorage         = errors.New("storage error")
)

// StatusFor maps a domain error to the HTTP status the API layer responds with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrPolicy):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrNotCompleted), errors.Is(err, ErrDuplicateReview):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError is the error body the API layer responds with.
type HTTPError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}
