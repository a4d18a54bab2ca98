package world

// SyncFrom pulls this tick's dirty component data, the current consume
// event buffer, singleton values, and entity liveness from other into r.
// It is the operation every snapshot provider's Update ultimately calls:
// a persistent double-buffered replica, an on-demand pooled replica, and a
// refcounted shared snapshot all differ only in when they call SyncFrom
// and how long the result is held before the next call, not in what a
// sync actually copies.
//
// filter restricts which component columns are copied; nil copies every
// registered component. schema is shared by reference between r and other
// and is never written here.
func (r *Repository) SyncFrom(other *Repository, filter map[ComponentID]bool) {
	r.registry.SyncFrom(other.registry)
	r.store.SyncDirtyFrom(other.store, filter)
	other.eventBus.CopyConsumeInto(r.eventBus)
	other.singletons.CopyInto(r.singletons)
	r.tick = other.tick
	r.simTime = other.simTime
}

// ResetForReuse clears r's entity, component, and event state while
// keeping its allocated chunks and columns, so a pooled replica can be
// handed back and later reacquired without reallocating its backing
// storage.
func (r *Repository) ResetForReuse() {
	r.store.SoftClear()
	r.registry = NewRegistry()
	r.eventBus = NewEventBus()
	r.singletons = NewSingletonTable()
	r.tick = 0
	r.simTime = 0
}
