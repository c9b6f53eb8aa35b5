// Package errors declares the sentinel errors shared across the engine and
// maps them onto HTTP status codes for the front ends.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrLabelMismatch is a configuration error: two vectors are angle-identical
	// but carry different labels, so the identical angle is set too low for
	// supervised insertion.
	ErrLabelMismatch = errors.New("label mismatch on angle-identical vectors")
	// ErrCorruptPostings is returned when a posting list is shorter on disk
	// than its header declares.
	ErrCorruptPostings = errors.New("corrupt posting list")
	// ErrCorruptIndex is returned when a page or record of a column index
	// cannot be replayed.
	ErrCorruptIndex = errors.New("corrupt column index")
	// ErrEmptyPostings is returned when a node without document ids is about
	// to be serialized.
	ErrEmptyPostings = errors.New("node has no postings")
	// ErrColumnNotFound means a field has no on-disk column yet. Searches
	// treat it as zero matches.
	ErrColumnNotFound   = errors.New("column not found")
	ErrSessionClosed    = errors.New("session is closed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
	// ErrUnavailable marks a dependency the caller should back off from.
	ErrUnavailable = errors.New("dependency unavailable")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrColumnNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrLabelMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
