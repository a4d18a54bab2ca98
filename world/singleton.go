package world

import (
	"reflect"
	"sync"
)

// SingletonTable holds at most one value per Go type: world-global state
// that does not belong to any one entity (simulation clock, active ruleset,
// shared configuration snapshot).
type SingletonTable struct {
	mu     sync.RWMutex
	values map[reflect.Type]any
}

// NewSingletonTable returns an empty SingletonTable.
func NewSingletonTable() *SingletonTable {
	return &SingletonTable{values: make(map[reflect.Type]any)}
}

// SetSingleton replaces T's current value, or sets it for the first time.
func SetSingleton[T any](t *SingletonTable, value T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[reflect.TypeFor[T]()] = value
}

// GetSingleton returns T's current value, or MissingSingletonError if it
// was never set.
func GetSingleton[T any](t *SingletonTable) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	typ := reflect.TypeFor[T]()
	v, ok := t.values[typ]
	if !ok {
		var zero T
		return zero, &MissingSingletonError{Type: typ.String()}
	}
	return v.(T), nil
}

// HasSingleton reports whether T currently has a value.
func HasSingleton[T any](t *SingletonTable) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.values[reflect.TypeFor[T]()]
	return ok
}

// CopyInto overwrites dst's values with a shallow copy of t's, used when
// building a replica's read-only projection.
func (t *SingletonTable) CopyInto(dst *SingletonTable) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	for typ, v := range t.values {
		dst.values[typ] = v
	}
}
