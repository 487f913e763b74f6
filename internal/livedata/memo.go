package livedata

import (
	"reflect"
	"sync"
)

// Keyer is implemented by reference descriptors with a canonical value key.
type Keyer interface {
	Key() string
}

type keyed string

// Memo caches the result of a factory until one of its dependencies changes
// by value. The zero value is ready to use.
type Memo[T any] struct {
	mu    sync.Mutex
	valid bool
	deps  []any
	value T
}

// Get returns the cached value when deps equal those of the previous call and
// otherwise runs factory. A panicking factory leaves the cache untouched.
func (m *Memo[T]) Get(factory func() T, deps ...any) T {
	normalized := normalizeDeps(deps)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && depsEqual(m.deps, normalized) {
		return m.value
	}
	value := factory()
	m.value = value
	m.deps = normalized
	m.valid = true
	return value
}

// Reset drops the cached value.
func (m *Memo[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.valid, m.deps, m.value = false, nil, zero
}

func normalizeDeps(deps []any) []any {
	out := make([]any, len(deps))
	for i, d := range deps {
		if isNil(d) {
			out[i] = nil
			continue
		}
		if k, ok := d.(Keyer); ok {
			out[i] = keyed(k.Key())
		} else {
			out[i] = d
		}
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
