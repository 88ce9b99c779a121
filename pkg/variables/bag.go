// Package variables implements the variable bag shared by a workflow
// execution: dotted-path access, deep merge, template interpolation, and
// condition evaluation.
package variables

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPathNotMap is returned by Set when an intermediate path segment exists
// but is not a map.
var ErrPathNotMap = errors.New("path traverses a non-map value")

// ResolutionError wraps a variable path error with the offending path.
type ResolutionError struct {
	Path string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot set variable %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Bag holds the mutable variable state of one execution. Engine-internal
// routing state is never stored here; user-supplied keys cannot collide
// with engine bookkeeping.
type Bag struct {
	values map[string]any
}

// NewBag wraps the given map; a nil map is replaced by an empty one. The
// bag takes ownership of the map.
func NewBag(values map[string]any) *Bag {
	if values == nil {
		values = make(map[string]any)
	}

	return &Bag{values: values}
}

// Get looks up a dotted path. The second return is false when the path is
// missing or traverses a non-map value.
func (b *Bag) Get(path string) (any, bool) {
	current := any(b.values)

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Set writes a value at a dotted path, creating intermediate map levels as
// needed. It fails with ErrPathNotMap when an intermediate segment exists
// but is not a map.
func (b *Bag) Set(path string, value any) error {
	segments := strings.Split(path, ".")
	current := b.values

	for i, segment := range segments[:len(segments)-1] {
		child, exists := current[segment]
		if !exists {
			next := make(map[string]any)
			current[segment] = next
			current = next

			continue
		}

		node, ok := child.(map[string]any)
		if !ok {
			return &ResolutionError{Path: strings.Join(segments[:i+1], "."), Err: ErrPathNotMap}
		}

		current = node
	}

	current[segments[len(segments)-1]] = value

	return nil
}

// MergeIn deep-merges the given maps into the bag, in order, later values
// winning.
func (b *Bag) MergeIn(maps ...map[string]any) {
	for _, m := range maps {
		b.values = merge(b.values, m)
	}
}

// Values returns the underlying map. Callers mutating it share state with
// the bag.
func (b *Bag) Values() map[string]any {
	return b.values
}

// Merge deep-merges the given maps left to right into a fresh map. Later
// values win; nested maps merge recursively; non-map values are replaced
// wholesale.
func Merge(maps ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, m := range maps {
		result = merge(result, m)
	}

	return result
}

func merge(dst, src map[string]any) map[string]any {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)

		if srcIsMap && dstIsMap {
			dst[key] = merge(dstMap, srcMap)

			continue
		}

		dst[key] = value
	}

	return dst
}

// SystemVariables builds the reserved _system sub-map injected at execution
// start. It is evaluated once, not per step.
func SystemVariables(now time.Time) map[string]any {
	now = now.UTC()

	return map[string]any{
		"_system": map[string]any{
			"timestamp": now.Format(time.RFC3339),
			"date":      now.Format("2006-01-02"),
			"time":      now.Format("15:04:05"),
		},
	}
}
