package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect when the instance already
	// holds a live session.
	ErrAlreadyConnected = errors.New("adapter already connected")
	// ErrNotConnected is returned by operations that require a live session.
	ErrNotConnected = errors.New("adapter not connected")
	// ErrSessionLost indicates the backend session died mid-run. The
	// instance is unusable afterwards and the remaining scenario operations
	// must be skipped.
	ErrSessionLost = errors.New("backend session lost")
)

// ConfigurationError reports a missing or malformed adapter option.
// Recoverable by the caller fixing the configuration.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid adapter configuration: option %q: %s", e.Option, e.Reason)
}

// ConnectionError reports that a target was unreachable or the automation
// backend could not be started within the configured timeout.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %q: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DuplicateCategoryError reports an attempt to bind a category that is
// already bound. Last-writer-wins is disallowed to prevent silent
// shadowing; the first registration is retained.
type DuplicateCategoryError struct {
	Category Category
}

func (e *DuplicateCategoryError) Error() string {
	return fmt.Sprintf("adapter category %q already registered", e.Category)
}

// UnknownCategoryError reports a lookup for a category nothing registered.
type UnknownCategoryError struct {
	Category Category
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("no adapter registered for category %q", e.Category)
}
