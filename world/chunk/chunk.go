// Package chunk implements the dense, dirty-tracked SoA storage underlying
// a world repository: fixed-capacity chunks holding one column per present
// component, plus the parallel managed-component table for immutable
// reference values.
package chunk

// DefaultCapacity is the typical chunk row capacity used when a caller
// doesn't have a more specific sizing requirement.
const DefaultCapacity = 1024

// ComponentID identifies a registered component type; it doubles as the
// bit position of that component in an Archetype mask.
type ComponentID int8

// Archetype is the bitmask of component IDs present on every row of a
// chunk. A schema supports at most 64 component types.
type Archetype uint64

// Has reports whether id is present in the archetype.
func (a Archetype) Has(id ComponentID) bool {
	return a&(1<<uint(id)) != 0
}

// With returns the archetype with id added.
func (a Archetype) With(id ComponentID) Archetype {
	return a | (1 << uint(id))
}

// Without returns the archetype with id removed.
func (a Archetype) Without(id ComponentID) Archetype {
	return a &^ (1 << uint(id))
}

// ID identifies one chunk, unique within a Store for its lifetime. IDs are
// never reused while a Store is alive, so a stale ID from a destroyed
// chunk is always recognisable as absent.
type ID uint32

// Location pins an entity to the row of the chunk that currently holds it.
type Location struct {
	Chunk ID
	Row   int
}

// Chunk is a fixed-capacity, single-archetype block of rows. Unmanaged
// component values and managed component references are both stored as
// boxed Go values in per-component dense slices indexed by row; this keeps
// the package free of unsafe/reflection-heavy manual memory layout while
// preserving the columnar access pattern and the dirty-tracking contract.
// A row's managed and unmanaged column entries share the same row index,
// so the two tables stay indexed identically without needing a second
// row-placement scheme.
type Chunk struct {
	id        ID
	archetype Archetype
	capacity  int

	rows     int
	entities []uint32 // row -> entity index, len == rows

	columns map[ComponentID][]any // unmanaged, one slice per component
	managed map[ComponentID][]any // managed, one slice per component

	dirty bool
}

// New allocates an empty chunk for the given archetype and capacity.
func New(id ID, archetype Archetype, capacity int) *Chunk {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Chunk{
		id:        id,
		archetype: archetype,
		capacity:  capacity,
		entities:  make([]uint32, 0, capacity),
		columns:   make(map[ComponentID][]any),
		managed:   make(map[ComponentID][]any),
	}
}

// ID returns the chunk's identity.
func (c *Chunk) ID() ID { return c.id }

// Archetype returns the chunk's archetype.
func (c *Chunk) Archetype() Archetype { return c.archetype }

// Len returns the number of occupied rows.
func (c *Chunk) Len() int { return c.rows }

// Capacity returns the maximum number of rows the chunk can hold.
func (c *Chunk) Capacity() int { return c.capacity }

// Full reports whether the chunk has no remaining row capacity.
func (c *Chunk) Full() bool { return c.rows >= c.capacity }

// Dirty reports whether any row has changed since the last ClearDirty.
func (c *Chunk) Dirty() bool { return c.dirty }

// MarkDirty flags the chunk as changed.
func (c *Chunk) MarkDirty() { c.dirty = true }

// ClearDirty resets the dirty flag after a sync has observed the chunk.
func (c *Chunk) ClearDirty() { c.dirty = false }

// EntityAt returns the entity index occupying row.
func (c *Chunk) EntityAt(row int) uint32 { return c.entities[row] }

// Rows returns the live entity-index slice in row order, for read-only
// iteration. Callers must not mutate the returned slice.
func (c *Chunk) Rows() []uint32 { return c.entities }

// appendRow reserves the next row for entityIndex, initialising every
// registered column with its zero value so get_ro never indexes out of
// range. It returns the row index.
func (c *Chunk) appendRow(entityIndex uint32) int {
	row := c.rows
	c.entities = append(c.entities, entityIndex)
	for id, col := range c.columns {
		c.columns[id] = append(col, nil)
	}
	for id, col := range c.managed {
		c.managed[id] = append(col, nil)
	}
	c.rows++
	c.dirty = true
	return row
}

// removeRow swaps the last row into row's slot and shrinks by one,
// returning the entity index that was moved into row (or 0, false if row
// was already the last row).
func (c *Chunk) removeRow(row int) (moved uint32, ok bool) {
	last := c.rows - 1
	if row < 0 || row > last {
		return 0, false
	}
	if row != last {
		c.entities[row] = c.entities[last]
		for id, col := range c.columns {
			col[row] = col[last]
			c.columns[id] = col
		}
		for id, col := range c.managed {
			col[row] = col[last]
			c.managed[id] = col
		}
		moved, ok = c.entities[last], true
	}
	c.entities = c.entities[:last]
	for id, col := range c.columns {
		c.columns[id] = col[:last]
	}
	for id, col := range c.managed {
		c.managed[id] = col[:last]
	}
	c.rows--
	c.dirty = true
	return moved, ok
}

// getUnmanaged returns the value stored for component id at row.
func (c *Chunk) getUnmanaged(id ComponentID, row int) (any, bool) {
	col, ok := c.columns[id]
	if !ok || row < 0 || row >= len(col) {
		return nil, false
	}
	return col[row], true
}

// setUnmanaged stores value for component id at row, allocating the
// column lazily on first write.
func (c *Chunk) setUnmanaged(id ComponentID, row int, value any) {
	col, ok := c.columns[id]
	if !ok {
		col = make([]any, c.rows)
		c.columns[id] = col
	}
	if row >= len(col) {
		return
	}
	col[row] = value
	c.dirty = true
}

// getManaged returns the value stored for managed component id at row.
func (c *Chunk) getManaged(id ComponentID, row int) (any, bool) {
	col, ok := c.managed[id]
	if !ok || row < 0 || row >= len(col) {
		return nil, false
	}
	return col[row], true
}

// setManaged stores value for managed component id at row.
func (c *Chunk) setManaged(id ComponentID, row int, value any) {
	col, ok := c.managed[id]
	if !ok {
		col = make([]any, c.rows)
		c.managed[id] = col
	}
	if row >= len(col) {
		return
	}
	col[row] = value
	c.dirty = true
}

// cloneInto copies this chunk's data into dst, which must already exist
// with a matching archetype and capacity. It is the per-chunk body of
// Store.SyncDirtyFrom: a full columnar copy plus row index, used only for
// chunks flagged dirty in the source.
//
// copyFuncs supplies a deep-copy function per unmanaged ComponentID
// (registered by the owning world.Schema); a nil or missing entry falls
// back to a plain interface copy. Managed columns are always shallow
// reference copies, safe only under the invariant that a managed value
// is never mutated in place once published.
func (c *Chunk) cloneInto(dst *Chunk, copyFuncs map[ComponentID]func(any) any) {
	dst.archetype = c.archetype
	dst.rows = c.rows
	dst.entities = append(dst.entities[:0], c.entities...)
	for id := range dst.columns {
		delete(dst.columns, id)
	}
	for id, col := range c.columns {
		cp := copyFuncs[id]
		newCol := make([]any, len(col))
		for i, v := range col {
			if cp != nil && v != nil {
				newCol[i] = cp(v)
			} else {
				newCol[i] = v
			}
		}
		dst.columns[id] = newCol
	}
	for id := range dst.managed {
		delete(dst.managed, id)
	}
	for id, col := range c.managed {
		dst.managed[id] = append([]any(nil), col...)
	}
	dst.dirty = true
}

// filteredArchetype intersects full with keep, so a chunk synced under a
// component filter reports only the components it actually received a
// column for. Passing the source archetype through unfiltered would make
// has_component/with<T> see a type on a replica that never copied it.
func filteredArchetype(full Archetype, keep map[ComponentID]bool) Archetype {
	var out Archetype
	for id := ComponentID(0); id < 64; id++ {
		if full.Has(id) && keep[id] {
			out = out.With(id)
		}
	}
	return out
}

// cloneFiltered behaves like cloneInto but only copies component columns
// present in keep, used by snapshot strategies that sync a mask
// intersecting every requester's declared component set.
func (c *Chunk) cloneFiltered(dst *Chunk, copyFuncs map[ComponentID]func(any) any, keep map[ComponentID]bool) {
	dst.archetype = filteredArchetype(c.archetype, keep)
	dst.rows = c.rows
	dst.entities = append(dst.entities[:0], c.entities...)
	for id := range dst.columns {
		delete(dst.columns, id)
	}
	for id, col := range c.columns {
		if !keep[id] {
			continue
		}
		cp := copyFuncs[id]
		newCol := make([]any, len(col))
		for i, v := range col {
			if cp != nil && v != nil {
				newCol[i] = cp(v)
			} else {
				newCol[i] = v
			}
		}
		dst.columns[id] = newCol
	}
	for id := range dst.managed {
		delete(dst.managed, id)
	}
	for id, col := range c.managed {
		if !keep[id] {
			continue
		}
		dst.managed[id] = append([]any(nil), col...)
	}
	dst.dirty = true
}

// softClear resets logical state while keeping allocated columns so a
// pooled replica can be reacquired without reallocating its slices.
func (c *Chunk) softClear() {
	c.rows = 0
	c.entities = c.entities[:0]
	for id, col := range c.columns {
		c.columns[id] = col[:0]
	}
	for id, col := range c.managed {
		c.managed[id] = col[:0]
	}
	c.dirty = false
}
