package common

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindInternal        ErrorKind = "internal"
)

// AppError is the error every service operation returns. Message is safe to
// show to the user; Err carries the underlying cause for the logs.
type AppError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string // per-field messages for validation errors
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ErrValidation(message string, fields map[string]string) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

func ErrForbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

func ErrNotFound(resource string, key interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, key)}
}

func ErrUnauthenticated() *AppError {
	return &AppError{Kind: KindUnauthenticated, Message: "You need to log in first."}
}

func ErrInternal(err error) *AppError {
	return &AppError{Kind: KindInternal, Message: "Something went wrong, please try again.", Err: err}
}

// AsAppError unwraps err into an AppError, treating anything else as internal.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal(err)
}

func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
