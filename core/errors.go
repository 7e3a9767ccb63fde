package core

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrReadOnly         = errors.New("read-only session: viewing another institution")
)

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
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports that a referenced record does not resolve.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// PersistenceError is returned when the store rejects a write, Table naming the blocking relation.
type PersistenceError struct {
	Table string
	Err   error
}

func (err PersistenceError) Error() string {
	if err.Table == "" {
		return fmt.Sprintf("persistence error: %v", err.Err)
	}
	return fmt.Sprintf("operation blocked by related records in %q: %v", err.Table, err.Err)
}

func (err PersistenceError) Unwrap() error { return err.Err }

// AsPersistenceError finds a *PersistenceError anywhere in err's wrap chain.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
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
