// Package compose imports Docker Compose specifications as container maps.
// Importing is pure: YAML in, a cmap.ContainerMap or an error out.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyInput  = errors.New("compose spec is empty")
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	ErrNoServices     = errors.New("compose spec must define at least one service")
	ErrServiceNoImage = errors.New("service must have an image")
	ErrInvalidPort    = errors.New("invalid port configuration")

	ErrUnsupportedFeature = errors.New("unsupported compose feature")
)

// ImportError wraps errors with context about where the import failed.
type ImportError struct {
	Field   string // e.g. "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewImportError creates a new ImportError.
func NewImportError(field, message string, err error) *ImportError {
	return &ImportError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
