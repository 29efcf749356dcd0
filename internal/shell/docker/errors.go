// Package docker adapts the Docker SDK to the policy engine contract and
// implements the concrete action runner on top of it.
package docker

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrConnectionFailed  = errors.New("docker connection failed")
	ErrContainerNotFound = errors.New("container not found")
	ErrPreparationFailed = errors.New("attached volume preparation failed")
	ErrMissingArgument   = errors.New("missing engine-call argument")
	ErrInvalidArgument   = errors.New("invalid engine-call argument")
)

// EngineError wraps errors with context about the failed engine call.
type EngineError struct {
	Op        string // engine operation that failed
	Container string // container name or id, if applicable
	Message   string
	Err       error
}

func (e *EngineError) Error() string {
	if e.Container != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Container, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError.
func NewEngineError(op, container, message string, err error) *EngineError {
	return &EngineError{
		Op:        op,
		Container: container,
		Message:   message,
		Err:       err,
	}
}
