package consumer

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteStream means the body ended without a done or error event.
	ErrIncompleteStream = errors.New("stream ended before completion")

	// ErrArtifactExists is returned by FileSink.Create for an existing target.
	ErrArtifactExists = errors.New("output already exists")
)

// StatusError is a non-success response received before any stream began.
type StatusError struct {
	StatusCode int

	// Message is the relay's {"error": ...} body, when it sent one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("relay returned status %d", e.StatusCode)
}

// StreamError is an error event received from the relay.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// TransportError is a network or read failure on the consumer side.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvocationError is the failure outcome of Generate. Partial holds the text
// accumulated before the failure.
type InvocationError struct {
	Partial string
	Err     error
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
