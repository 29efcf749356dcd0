// Package mapfile parses YAML container map documents into the cmap model.
// Parsing is pure: input bytes in, a container map or an error out.
package mapfile

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyInput  = errors.New("container map document is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	ErrNoContainers   = errors.New("container map must define at least one container")
	ErrInvalidBind    = errors.New("invalid bind configuration")
	ErrInvalidPort    = errors.New("invalid port configuration")
	ErrInvalidCommand = errors.New("invalid command line")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g. "containers.web_server.binds[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
