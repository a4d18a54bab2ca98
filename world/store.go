package world

import "github.com/simkernel/kernel/world/chunk"

// Store composes the chunked column store and the managed-component
// table for one repository or replica. The two tables physically share
// chunk+row placement (see world/chunk's doc comment), which keeps them
// indexed identically without a second placement scheme.
type Store struct {
	raw *chunk.Store
}

// NewStore returns an empty Store whose chunks hold up to capacity rows
// each.
func NewStore(capacity int) *Store {
	return &Store{raw: chunk.NewStore(capacity)}
}

// RegisterComponentCopy installs T's deep-copy function against id so
// that cross-store syncs (SyncFrom, snapshot updates) produce
// independent unmanaged component values instead of aliasing the source
// store's memory. NewRepository already installs an equivalent copy
// function for every unmanaged component type in its schema; calling this
// replaces it for id.
func RegisterComponentCopy[T any](s *Store, id ComponentID) {
	s.raw.RegisterCopyFunc(chunk.ComponentID(id), func(v any) any {
		p := v.(*T)
		cp := *p
		return &cp
	})
}

// Chunks returns every chunk in deterministic creation order.
func (s *Store) Chunks() []*chunk.Chunk { return s.raw.Chunks() }

// ClearDirty clears the dirty flag on every chunk.
func (s *Store) ClearDirty() { s.raw.ClearDirty() }

// SoftClear resets logical state while retaining allocated chunks and
// columns, so a pooled replica can be reacquired without reallocation.
func (s *Store) SoftClear() { s.raw.SoftClear() }

// SyncDirtyFrom copies dirty chunks from other into s, optionally
// restricted to the component IDs in filter (nil copies every column).
func (s *Store) SyncDirtyFrom(other *Store, filter map[ComponentID]bool) {
	var rawFilter map[chunk.ComponentID]bool
	if filter != nil {
		rawFilter = make(map[chunk.ComponentID]bool, len(filter))
		for id, ok := range filter {
			if ok {
				rawFilter[chunk.ComponentID(id)] = true
			}
		}
	}
	s.raw.SyncDirtyFrom(other.raw, rawFilter)
}

// spawn and despawn are package-private: entity lifecycle is only driven
// through Repository, which keeps the Registry and Store in lockstep.
func (s *Store) spawn(index uint32) { s.raw.Spawn(index) }
func (s *Store) despawn(index uint32) {
	s.raw.Despawn(index)
}
