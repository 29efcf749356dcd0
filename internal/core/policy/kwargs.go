package policy

import (
	"github.com/conmap/conmap/internal/core/cmap"
)

// =============================================================================
// Request Arguments
// =============================================================================

// Kwargs is the request-argument mapping handed to an engine client call.
// Builders assemble Kwargs from layered configuration sources; Update defines
// the override semantics between layers.
type Kwargs map[string]any

// Copy returns a shallow copy.
func (k Kwargs) Copy() Kwargs {
	out := make(Kwargs, len(k))
	for key, val := range k {
		out[key] = val
	}
	return out
}

// Update merges the given override sets into kwargs, in order. For each
// override key/value:
//
//   - Lazy values are resolved first; a nil result is ignored and never
//     clears an existing key.
//   - List values are appended to an existing list value, except for the
//     "command" and "entrypoint" keys which are overwritten outright.
//   - Map values are shallow-merged into an existing map value, override
//     winning on key collision.
//   - Any other value replaces the existing one.
//
// The merge is single-level; it does not recurse into nested maps.
func Update(kwargs Kwargs, updates ...Kwargs) Kwargs {
	for _, update := range updates {
		for key, val := range update {
			item := cmap.Resolve(val)
			if item == nil {
				continue
			}
			if key == "command" || key == "entrypoint" {
				kwargs[key] = item
				continue
			}
			if merged, ok := appendLists(kwargs[key], item); ok {
				kwargs[key] = merged
				continue
			}
			if merged, ok := mergeMaps(kwargs[key], item); ok {
				kwargs[key] = merged
				continue
			}
			kwargs[key] = item
		}
	}
	return kwargs
}

// appendLists appends update to existing when update is list-valued. Elements
// of the update are lazily resolved. Mixed element types degrade to []any.
func appendLists(existing, update any) (any, bool) {
	switch u := update.(type) {
	case []any:
		resolved := make([]any, len(u))
		for i, v := range u {
			resolved[i] = cmap.Resolve(v)
		}
		return appendAny(existing, resolved), true
	case []string:
		if e, ok := existing.([]string); ok {
			return append(cloneList(e), u...), true
		}
		return appendAny(existing, toAnyList(u)), true
	case []int:
		if e, ok := existing.([]int); ok {
			return append(cloneList(e), u...), true
		}
		return appendAny(existing, toAnyList(u)), true
	}
	return nil, false
}

func appendAny(existing any, update []any) any {
	switch e := existing.(type) {
	case nil:
		return update
	case []any:
		return append(cloneList(e), update...)
	case []string:
		return append(toAnyList(e), update...)
	case []int:
		return append(toAnyList(e), update...)
	default:
		return update
	}
}

func cloneList[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func toAnyList[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// mergeMaps shallow-merges update into existing when update is map-valued.
// Values of the update are lazily resolved.
func mergeMaps(existing, update any) (any, bool) {
	switch u := update.(type) {
	case Kwargs:
		return mergeStringMap(existing, u), true
	case map[string]any:
		return mergeStringMap(existing, u), true
	case map[int]any:
		out := map[int]any{}
		if e, ok := existing.(map[int]any); ok {
			for k, v := range e {
				out[k] = v
			}
		}
		for k, v := range u {
			out[k] = cmap.Resolve(v)
		}
		return out, true
	}
	return nil, false
}

func mergeStringMap[M ~map[string]any](existing any, update M) any {
	out := Kwargs{}
	switch e := existing.(type) {
	case Kwargs:
		for k, v := range e {
			out[k] = v
		}
	case map[string]any:
		for k, v := range e {
			out[k] = v
		}
	}
	for k, v := range update {
		out[k] = cmap.Resolve(v)
	}
	return out
}

// initOptions evaluates the free-form extra options of a container
// configuration: a map is copied, a thunk is invoked, nil yields nil.
func initOptions(options any) Kwargs {
	switch o := options.(type) {
	case nil:
		return nil
	case Kwargs:
		return o.Copy()
	case map[string]any:
		return Kwargs(o).Copy()
	case func() map[string]any:
		return Kwargs(o())
	}
	return nil
}
