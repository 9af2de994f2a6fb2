package steamcmd

import (
	"errors"
	"fmt"
)

// Common errors returned by steamcmd operations
var (
	// ErrInvalidReference indicates a server reference that is not a
	// filesystem-safe token
	ErrInvalidReference = errors.New("steamcmd: invalid server reference")

	// ErrInvalidCommand indicates a console command that cannot be sent
	// as a single line
	ErrInvalidCommand = errors.New("steamcmd: invalid console command")

	// ErrUnknownServer indicates a server type not present in the registry
	ErrUnknownServer = errors.New("steamcmd: unknown server type")

	// ErrChannelNotReady indicates the input channel is absent or has no
	// reader attached (target process not accepting input)
	ErrChannelNotReady = errors.New("steamcmd: channel not accepting input")

	// ErrChannelWriteFailed indicates an I/O error after the channel was
	// successfully opened
	ErrChannelWriteFailed = errors.New("steamcmd: channel write failed")
)

// OpError represents an error from a steamcmd operation
type OpError struct {
	// Op is the operation that failed
	Op Operation
	// Path is the file path involved in the operation
	Path string
	// Err is the underlying error
	Err error
}

// Error returns a formatted error message
func (e *OpError) Error() string {
	return fmt.Sprintf("steamcmd %s %q: %v", e.Op.String(), e.Path, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *OpError) Unwrap() error {
	return e.Err
}

// MultiError aggregates multiple errors from bulk operations
type MultiError struct {
	// Errors contains all accumulated errors
	Errors []error
}

// Error returns a summary of the accumulated errors
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred", len(m.Errors))
}

// Add appends an error to the collection if it's not nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Err returns nil if no errors occurred, otherwise returns the MultiError itself
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}
