package cmap

// =============================================================================
// Deferred Values
// =============================================================================

// Lazy is a value that is computed at the moment it is needed. Paths,
// repository prefixes, and override values may be supplied lazily so that the
// same configuration entry can resolve differently per evaluation context
// (e.g. per-instance host paths).
//
// Results are never cached by the caller; Resolve is invoked again for every
// evaluation.
type Lazy interface {
	Resolve() any
}

// LazyFunc adapts a plain function to the Lazy interface.
type LazyFunc func() any

// Resolve implements Lazy.
func (f LazyFunc) Resolve() any { return f() }

// Resolve unwraps v if it is a Lazy value, recursively, and returns the
// concrete value. Non-lazy values are returned unchanged.
func Resolve(v any) any {
	for {
		l, ok := v.(Lazy)
		if !ok {
			return v
		}
		v = l.Resolve()
	}
}

// ResolveString resolves v and coerces the result to a string. A nil result
// resolves to the empty string.
func ResolveString(v any) string {
	r := Resolve(v)
	if r == nil {
		return ""
	}
	if s, ok := r.(string); ok {
		return s
	}
	return ""
}
