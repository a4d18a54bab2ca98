package world

import "github.com/simkernel/kernel/world/chunk"

// AddComponent sets value on h, moving it into the archetype that
// includes T's component if it did not already have one. A second add of
// the same component overwrites the existing value (idempotent-by-value).
func AddComponent[T any](r *Repository, h EntityHandle, value T) error {
	id, ok := ComponentIDFor[T](r.schema)
	if !ok {
		return &UnknownComponentError{ID: -1}
	}
	if !r.registry.IsAlive(h) {
		return &DeadEntityError{Handle: h}
	}
	kind, _ := r.schema.ComponentKindOf(id)
	if kind == Managed {
		r.store.raw.AddComponent(h.Index, chunk.ComponentID(id), true, value)
		r.touchComponent(id)
		return nil
	}
	cp := value
	r.store.raw.AddComponent(h.Index, chunk.ComponentID(id), false, &cp)
	r.touchComponent(id)
	return nil
}

// SetComponent overwrites T's value on h without changing its archetype.
// It returns a MissingComponentError if h does not currently have T.
func SetComponent[T any](r *Repository, h EntityHandle, value T) error {
	id, ok := ComponentIDFor[T](r.schema)
	if !ok {
		return &UnknownComponentError{ID: -1}
	}
	if !r.registry.IsAlive(h) {
		return &DeadEntityError{Handle: h}
	}
	kind, _ := r.schema.ComponentKindOf(id)
	var wrote bool
	if kind == Managed {
		wrote = r.store.raw.SetComponent(h.Index, chunk.ComponentID(id), true, value)
	} else {
		cp := value
		wrote = r.store.raw.SetComponent(h.Index, chunk.ComponentID(id), false, &cp)
	}
	if !wrote {
		return &MissingComponentError{Handle: h, ID: id}
	}
	r.touchComponent(id)
	return nil
}

// RemoveComponent drops T from h's archetype. It is a no-op if h does not
// currently have T.
func RemoveComponent[T any](r *Repository, h EntityHandle) error {
	id, ok := ComponentIDFor[T](r.schema)
	if !ok {
		return &UnknownComponentError{ID: -1}
	}
	if !r.registry.IsAlive(h) {
		return &DeadEntityError{Handle: h}
	}
	r.store.raw.RemoveComponent(h.Index, chunk.ComponentID(id))
	r.touchComponent(id)
	return nil
}

// GetRO returns a read-only copy of h's current T value.
func GetRO[T any](r *Repository, h EntityHandle) (T, error) {
	var zero T
	id, ok := ComponentIDFor[T](r.schema)
	if !ok {
		return zero, &UnknownComponentError{ID: -1}
	}
	if !r.registry.IsAlive(h) {
		return zero, &DeadEntityError{Handle: h}
	}
	kind, _ := r.schema.ComponentKindOf(id)
	raw, present := r.store.raw.GetRO(h.Index, chunk.ComponentID(id), kind == Managed)
	if !present || raw == nil {
		return zero, &MissingComponentError{Handle: h, ID: id}
	}
	if kind == Managed {
		return raw.(T), nil
	}
	return *raw.(*T), nil
}

// GetMut returns a live pointer to h's current T value for in-place
// mutation on the repository's owning thread. It only supports unmanaged
// components; managed components are never mutable in place.
func GetMut[T any](r *Repository, h EntityHandle) (*T, error) {
	id, ok := ComponentIDFor[T](r.schema)
	if !ok {
		return nil, &UnknownComponentError{ID: -1}
	}
	if !r.registry.IsAlive(h) {
		return nil, &DeadEntityError{Handle: h}
	}
	if kind, _ := r.schema.ComponentKindOf(id); kind == Managed {
		return nil, &MissingComponentError{Handle: h, ID: id}
	}
	raw, present := r.store.raw.GetMut(h.Index, chunk.ComponentID(id))
	if !present || raw == nil {
		return nil, &MissingComponentError{Handle: h, ID: id}
	}
	return raw.(*T), nil
}

// HasComponent reports whether h currently has a T value.
func HasComponent[T any](r *Repository, h EntityHandle) bool {
	id, ok := ComponentIDFor[T](r.schema)
	if !ok || !r.registry.IsAlive(h) {
		return false
	}
	return r.store.raw.HasComponent(h.Index, chunk.ComponentID(id))
}
