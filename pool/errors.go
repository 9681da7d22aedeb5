package pool

import (
	"errors"
	"fmt"
)

// Pool errors.
var (
	// ErrResourceExhausted is returned when the pool is full and every entry
	// is in use.
	ErrResourceExhausted = errors.New("pool: resource exhausted")

	// ErrContextCreation is returned when capability is present but the
	// factory failed to create a context.
	ErrContextCreation = errors.New("pool: context creation failed")
)

// ExhaustedError reports a rejected Acquire.
type ExhaustedError struct {
	Key      string
	Capacity int
	InUse    int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("pool: cannot acquire %q: %d/%d contexts in use", e.Key, e.InUse, e.Capacity)
}

// Unwrap returns ErrResourceExhausted.
func (e *ExhaustedError) Unwrap() error { return ErrResourceExhausted }

// CreationError wraps a factory failure.
type CreationError struct {
	Key string
	Err error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("pool: create context %q: %v", e.Key, e.Err)
}

// Unwrap returns both ErrContextCreation and the factory error.
func (e *CreationError) Unwrap() []error { return []error{ErrContextCreation, e.Err} }
