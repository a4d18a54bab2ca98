package chunk

import (
	"github.com/brentp/intintmap"
)

// Store owns every Chunk for one repository or replica and tracks which
// chunk+row each live entity index occupies. A Store is safe for any
// number of concurrent readers so long as nothing is mutating it
// concurrently: the live store is mutated only by its owning thread; a
// replica's Store is mutated only by the thread performing its sync.
type Store struct {
	capacity int

	chunks     map[ID]*Chunk
	order      []ID
	openByArch map[Archetype][]ID

	location *intintmap.Map // entity index -> packed (chunk id, row)

	nextID ID

	copyFuncs map[ComponentID]func(any) any
}

// NewStore returns an empty Store whose chunks hold up to capacity rows
// each (DefaultCapacity if capacity <= 0).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:   capacity,
		chunks:     make(map[ID]*Chunk),
		openByArch: make(map[Archetype][]ID),
		location:   intintmap.New(1024, 0.6),
		copyFuncs:  make(map[ComponentID]func(any) any),
	}
}

func packLocation(id ID, row int) int64 {
	return int64(uint64(id)<<32 | uint64(uint32(row)))
}

func unpackLocation(v int64) Location {
	u := uint64(v)
	return Location{Chunk: ID(u >> 32), Row: int(uint32(u))}
}

// RegisterCopyFunc installs the deep-copy function used for an unmanaged
// component's values when a replica syncs from this store (or a store
// syncs from another). Only relevant for unmanaged component IDs; managed
// IDs never need one, since their sync is always a shallow reference
// copy.
func (s *Store) RegisterCopyFunc(id ComponentID, fn func(any) any) {
	s.copyFuncs[id] = fn
}

// acquireChunk returns a chunk with free capacity for archetype, creating
// one if none exists.
func (s *Store) acquireChunk(archetype Archetype) *Chunk {
	for _, id := range s.openByArch[archetype] {
		if c := s.chunks[id]; !c.Full() {
			return c
		}
	}
	id := s.nextID
	s.nextID++
	c := New(id, archetype, s.capacity)
	s.chunks[id] = c
	s.order = append(s.order, id)
	s.openByArch[archetype] = append(s.openByArch[archetype], id)
	return c
}

func (s *Store) markFull(c *Chunk) {
	if !c.Full() {
		return
	}
	ids := s.openByArch[c.Archetype()]
	for i, id := range ids {
		if id == c.ID() {
			s.openByArch[c.Archetype()] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Spawn places a freshly created entity into the empty archetype (no
// components yet) and returns its location.
func (s *Store) Spawn(entityIndex uint32) Location {
	c := s.acquireChunk(0)
	row := c.appendRow(entityIndex)
	s.markFull(c)
	loc := Location{Chunk: c.ID(), Row: row}
	s.location.Put(int64(entityIndex), packLocation(loc.Chunk, loc.Row))
	return loc
}

// Despawn removes entityIndex's row entirely, used when the owning entity
// is destroyed.
func (s *Store) Despawn(entityIndex uint32) {
	loc, ok := s.Location(entityIndex)
	if !ok {
		return
	}
	c := s.chunks[loc.Chunk]
	moved, movedOK := c.removeRow(loc.Row)
	if movedOK {
		s.location.Put(int64(moved), packLocation(loc.Chunk, loc.Row))
	}
	s.location.Del(int64(entityIndex))
	if !c.Full() {
		s.reopen(c)
	}
}

func (s *Store) reopen(c *Chunk) {
	ids := s.openByArch[c.Archetype()]
	for _, id := range ids {
		if id == c.ID() {
			return
		}
	}
	s.openByArch[c.Archetype()] = append(ids, c.ID())
}

// Location returns the chunk+row currently holding entityIndex.
func (s *Store) Location(entityIndex uint32) (Location, bool) {
	v, ok := s.location.Get(int64(entityIndex))
	if !ok {
		return Location{}, false
	}
	return unpackLocation(v), true
}

// Archetype returns the archetype currently assigned to entityIndex.
func (s *Store) Archetype(entityIndex uint32) (Archetype, bool) {
	loc, ok := s.Location(entityIndex)
	if !ok {
		return 0, false
	}
	return s.chunks[loc.Chunk].Archetype(), true
}

// HasComponent reports whether entityIndex's current archetype includes
// id.
func (s *Store) HasComponent(entityIndex uint32, id ComponentID) bool {
	a, ok := s.Archetype(entityIndex)
	return ok && a.Has(id)
}

// changeArchetype moves entityIndex to a chunk matching newArch, carrying
// over every column value shared between the old and new archetype, and
// returns the new location. It is a no-op (returns the existing location)
// if entityIndex is already in an archetype-matching chunk.
func (s *Store) changeArchetype(entityIndex uint32, newArch Archetype) Location {
	loc, ok := s.Location(entityIndex)
	if !ok {
		return Location{}
	}
	old := s.chunks[loc.Chunk]
	if old.Archetype() == newArch {
		return loc
	}
	dst := s.acquireChunk(newArch)
	dstRow := dst.appendRow(entityIndex)
	for id, col := range old.columns {
		if newArch.Has(id) {
			dst.setUnmanaged(id, dstRow, col[loc.Row])
		}
	}
	for id, col := range old.managed {
		if newArch.Has(id) {
			dst.setManaged(id, dstRow, col[loc.Row])
		}
	}
	s.markFull(dst)

	moved, movedOK := old.removeRow(loc.Row)
	if movedOK {
		s.location.Put(int64(moved), packLocation(loc.Chunk, loc.Row))
	}
	if !old.Full() {
		s.reopen(old)
	}

	newLoc := Location{Chunk: dst.ID(), Row: dstRow}
	s.location.Put(int64(entityIndex), packLocation(newLoc.Chunk, newLoc.Row))
	return newLoc
}

// AddComponent sets id's value on entityIndex, moving it to the
// archetype that includes id if it didn't already have it. A second add
// of the same component is idempotent-by-value: it overwrites in place
// without moving chunks.
func (s *Store) AddComponent(entityIndex uint32, id ComponentID, managed bool, value any) {
	a, ok := s.Archetype(entityIndex)
	if !ok {
		return
	}
	var l Location
	if !a.Has(id) {
		l = s.changeArchetype(entityIndex, a.With(id))
	} else {
		l, _ = s.Location(entityIndex)
	}
	s.writeComponent(l, id, managed, value)
}

// SetComponent overwrites id's value on entityIndex without changing its
// archetype. ok is false if entityIndex does not currently have id.
func (s *Store) SetComponent(entityIndex uint32, id ComponentID, managed bool, value any) (ok bool) {
	a, present := s.Archetype(entityIndex)
	if !present || !a.Has(id) {
		return false
	}
	l, _ := s.Location(entityIndex)
	s.writeComponent(l, id, managed, value)
	return true
}

func (s *Store) writeComponent(l Location, id ComponentID, managed bool, value any) {
	c := s.chunks[l.Chunk]
	if managed {
		c.setManaged(id, l.Row, value)
	} else {
		c.setUnmanaged(id, l.Row, value)
	}
}

// RemoveComponent drops id from entityIndex's archetype, moving it to the
// matching chunk for the reduced archetype. It is a no-op if entityIndex
// does not currently have id.
func (s *Store) RemoveComponent(entityIndex uint32, id ComponentID) {
	a, ok := s.Archetype(entityIndex)
	if !ok || !a.Has(id) {
		return
	}
	s.changeArchetype(entityIndex, a.Without(id))
}

// GetRO returns the boxed value stored for entityIndex's component id.
// For unmanaged components the caller's generic wrapper (see world
// package) is expected to store values boxed as *T and to dereference
// the result here into a value copy, so a read-only caller can never
// mutate live storage through it.
func (s *Store) GetRO(entityIndex uint32, id ComponentID, managed bool) (any, bool) {
	loc, ok := s.Location(entityIndex)
	if !ok {
		return nil, false
	}
	c := s.chunks[loc.Chunk]
	if managed {
		return c.getManaged(id, loc.Row)
	}
	v, ok := c.getUnmanaged(id, loc.Row)
	if !ok || v == nil {
		return nil, ok
	}
	return v, true
}

// GetMut returns the live boxed value for an unmanaged component as
// stored (a *T, by the world package's convention) so the caller
// (running on the store's owning thread) can mutate it in place.
// Managed components never support GetMut: managed writes replace the
// slot's reference atomically, never a field-level mutation.
func (s *Store) GetMut(entityIndex uint32, id ComponentID) (any, bool) {
	loc, ok := s.Location(entityIndex)
	if !ok {
		return nil, false
	}
	c := s.chunks[loc.Chunk]
	return c.getUnmanaged(id, loc.Row)
}

// Chunks returns every chunk in deterministic creation order.
func (s *Store) Chunks() []*Chunk {
	out := make([]*Chunk, len(s.order))
	for i, id := range s.order {
		out[i] = s.chunks[id]
	}
	return out
}

// ClearDirty clears the dirty flag on every chunk.
func (s *Store) ClearDirty() {
	for _, c := range s.chunks {
		c.ClearDirty()
	}
}

// SoftClear resets logical state on every chunk while retaining allocated
// chunks and columns, and drops placement bookkeeping, so a pooled
// instance can be reacquired without reallocation.
func (s *Store) SoftClear() {
	for _, c := range s.chunks {
		c.softClear()
	}
	s.location = intintmap.New(1024, 0.6)
	for arch := range s.openByArch {
		delete(s.openByArch, arch)
	}
	for _, id := range s.order {
		c := s.chunks[id]
		s.openByArch[c.Archetype()] = append(s.openByArch[c.Archetype()], id)
	}
}

// SyncDirtyFrom iterates chunks flagged dirty in other, allocating or
// reusing the matching chunk in s, copying columns and the dirty bit, and
// removing any chunk that exists in s but not in other at all (sparse
// replication: only the working set propagates, and entities present
// only in s are cleared). filter, if non-nil, restricts which component
// IDs are copied (used by pooled/shared snapshots per their declared
// component mask); a nil filter copies every column.
func (s *Store) SyncDirtyFrom(other *Store, filter map[ComponentID]bool) {
	existsInOther := make(map[ID]bool, len(other.order))
	for _, id := range other.order {
		existsInOther[id] = true
	}

	for _, id := range other.order {
		oc := other.chunks[id]
		if !oc.Dirty() {
			continue
		}
		dst, ok := s.chunks[id]
		if !ok {
			archetype := oc.Archetype()
			if filter != nil {
				archetype = filteredArchetype(archetype, filter)
			}
			dst = New(id, archetype, oc.Capacity())
			s.chunks[id] = dst
			s.order = append(s.order, id)
		}
		if filter == nil {
			oc.cloneInto(dst, s.copyFuncs)
		} else {
			oc.cloneFiltered(dst, s.copyFuncs, filter)
		}
	}

	for id := range s.chunks {
		if !existsInOther[id] {
			delete(s.chunks, id)
			for i, oid := range s.order {
				if oid == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		}
	}

	s.rebuildPlacement()
}

func (s *Store) rebuildPlacement() {
	s.location = intintmap.New(1024, 0.6)
	for arch := range s.openByArch {
		delete(s.openByArch, arch)
	}
	for _, id := range s.order {
		c := s.chunks[id]
		for row, ent := range c.Rows() {
			s.location.Put(int64(ent), packLocation(id, row))
		}
		if !c.Full() {
			s.openByArch[c.Archetype()] = append(s.openByArch[c.Archetype()], id)
		}
	}
}
