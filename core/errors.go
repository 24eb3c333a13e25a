package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError marks a missing resource. Domain packages wrap their sentinels with it so transports
// can map it without knowing every domain.
type NotFoundError struct {
	Err error
}

func NewNotFoundError(err error) error {
	return &NotFoundError{Err: err}
}

func (err NotFoundError) Error() string {
	if err.Err == nil {
		return "not found"
	}
	return err.Err.Error()
}

func (err NotFoundError) Cause() error { return err.Err }

// IsNotFound reports whether any error in the chain of err is a *NotFoundError.
func IsNotFound(err error) bool {
	for err != nil {
		if _, ok := err.(*NotFoundError); ok {
			return true
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = cause.Cause()
	}
	return false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
