package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInternal        = errors.New("internal error")
	ErrConflict        = errors.New("conflict")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrSearchFailed    = errors.New("search failed")
	ErrSuggestFailed   = errors.New("suggest failed")
	ErrReindexFailed   = errors.New("reindex failed")
	ErrReindexInFlight = errors.New("reindex in progress")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidParameter creates a 400 error for a query parameter that could not
// be bound.
func InvalidParameter(name, reason string) *AppError {
	return &AppError{
		Code:    "INVALID_PARAMETER",
		Message: fmt.Sprintf("invalid parameter %q: %s", name, reason),
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Conflict creates a 409 error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// SearchFailed creates a 500 error for a failed course search.
func SearchFailed(err error) *AppError {
	return &AppError{
		Code:    "SEARCH_FAILED",
		Message: "course search failed",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrSearchFailed, err),
	}
}

// SuggestFailed creates a 500 error for a failed suggestion lookup.
func SuggestFailed(err error) *AppError {
	return &AppError{
		Code:    "SUGGEST_FAILED",
		Message: "title suggestion failed",
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrSuggestFailed, err),
	}
}

// ReindexFailed creates a 500 error for a failed reindex. The message carries
// the underlying cause so operators can see why the reload stopped.
func ReindexFailed(err error) *AppError {
	return &AppError{
		Code:    "REINDEX_FAILED",
		Message: err.Error(),
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrReindexFailed, err),
	}
}

// ReindexInProgress creates a 409 error returned when another reindex holds
// the lock.
func ReindexInProgress() *AppError {
	return &AppError{
		Code:    "REINDEX_IN_PROGRESS",
		Message: "another reindex is already running",
		Status:  http.StatusConflict,
		Err:     ErrReindexInFlight,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrReindexInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
