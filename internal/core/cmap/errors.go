package cmap

import "fmt"

// =============================================================================
// Error Types
// =============================================================================

// LookupError reports a reference to a name that does not exist: a container
// configuration, a volume alias, or a client name. Lookup errors are always
// fatal to the single action being generated.
type LookupError struct {
	Kind string // "container", "volume", "client", "map"
	Name string
	Map  string // container map the lookup was scoped to, if any
}

func (e *LookupError) Error() string {
	if e.Map != "" {
		return fmt.Sprintf("%s '%s' not found on map '%s'", e.Kind, e.Name, e.Map)
	}
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
}

// NewLookupError creates a LookupError for the given kind and name.
func NewLookupError(kind, name, mapName string) *LookupError {
	return &LookupError{Kind: kind, Name: name, Map: mapName}
}

// ValidationError reports a malformed configuration value, carrying the
// offending value in the message.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (found %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
