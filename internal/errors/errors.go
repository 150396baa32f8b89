package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeValidation      ErrorType = "VALIDATION"
	ErrorTypeInternal        ErrorType = "INTERNAL"
	ErrorTypeUnauthorized    ErrorType = "UNAUTHORIZED"
	ErrorTypeConnection      ErrorType = "CONNECTION"
	ErrorTypeBlobUnavailable ErrorType = "BLOB_UNAVAILABLE"
	ErrorTypeConflict        ErrorType = "CONFLICT"
	ErrorTypeInvalidState    ErrorType = "INVALID_STATE"
)

// Sentinels for errors.Is. They match any *Error of the same type.
var (
	ErrNotFound        = &Error{Type: ErrorTypeNotFound}
	ErrValidation      = &Error{Type: ErrorTypeValidation}
	ErrUnauthorized    = &Error{Type: ErrorTypeUnauthorized}
	ErrConnection      = &Error{Type: ErrorTypeConnection}
	ErrBlobUnavailable = &Error{Type: ErrorTypeBlobUnavailable}
	ErrConflict        = &Error{Type: ErrorTypeConflict}
	ErrInvalidState    = &Error{Type: ErrorTypeInvalidState}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same type. A target carrying
// a message must match it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Unauthorized(message string) *Error {
	return &Error{
		Type:    ErrorTypeUnauthorized,
		Message: message,
		Code:    http.StatusForbidden,
	}
}

func Connection(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeConnection,
		Message: message,
		Code:    http.StatusServiceUnavailable,
		cause:   cause,
	}
}

func BlobUnavailable(hash string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeBlobUnavailable,
		Message: fmt.Sprintf("blob %s unavailable", hash),
		Code:    http.StatusNotFound,
		Details: hash,
		cause:   cause,
	}
}

// Conflict reports the paths a merge could not resolve.
func Conflict(paths []string) *Error {
	return &Error{
		Type:    ErrorTypeConflict,
		Message: fmt.Sprintf("merge conflict in %d path(s): %s", len(paths), strings.Join(paths, ", ")),
		Code:    http.StatusConflict,
		Details: paths,
	}
}

func InvalidState(message string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidState,
		Message: message,
		Code:    http.StatusConflict,
	}
}

func Internal(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		cause:   cause,
	}
}

// TypeOf returns the type of the first *Error in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// StatusCode maps err to the HTTP status used on the wire.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

// ConflictPaths extracts the path list carried by a CONFLICT error.
func ConflictPaths(err error) []string {
	var e *Error
	if !stderrors.As(err, &e) || e.Type != ErrorTypeConflict {
		return nil
	}
	switch d := e.Details.(type) {
	case []string:
		return d
	case []any:
		paths := make([]string, 0, len(d))
		for _, p := range d {
			if s, ok := p.(string); ok {
				paths = append(paths, s)
			}
		}
		return paths
	}
	return nil
}
