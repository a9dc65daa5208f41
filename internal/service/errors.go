package service

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreFailure marks errors caused by the directory store.
	ErrStoreFailure = errors.New("directory store failure")
	// ErrInvalidRequest marks search requests rejected before any store access.
	ErrInvalidRequest = errors.New("invalid search request")
)

// StoreError wraps a store failure with the operation that hit it.
type StoreError struct {
	Op      string
	Timeout bool
	Err     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: store timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is matches ErrStoreFailure.
func (e *StoreError) Is(target error) bool { return target == ErrStoreFailure }

// IsTimeout reports whether the store did not answer in time.
func (e *StoreError) IsTimeout() bool { return e.Timeout }

// RequestError identifies the offending request field.
type RequestError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidRequest.
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

func invalidField(field, format string, args ...any) error {
	return &RequestError{Field: field, Message: fmt.Sprintf(format, args...)}
}
