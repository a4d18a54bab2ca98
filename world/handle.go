package world

import (
	"sync"
)

// EntityHandle is an (index, generation) pair identifying a row owned by a
// Registry. A handle resolves to the same logical entity only while the
// registry's current generation at Index matches Generation; once the
// entity behind a handle is destroyed, the handle never resolves again.
type EntityHandle struct {
	Index      uint32
	Generation uint32
}

// Zero reports whether h is the zero handle, used as a placeholder for "no
// entity" in row bookkeeping.
func (h EntityHandle) Zero() bool {
	return h == EntityHandle{}
}

// Registry hands out and reclaims EntityHandles. It tracks only liveness and
// generation; row placement within the chunked store is tracked separately
// by Store so that Registry stays a cheap, allocation-light structure safe
// to query from any number of readers between ticks.
//
// Registry is not safe for concurrent mutation: Create and Destroy must be
// called from the repository's owning thread, matching the ownership
// discipline described for the live world. IsAlive and Resolve are
// read-only and may be called from any goroutine holding a view acquired
// after the mutations they should observe.
type Registry struct {
	mu sync.RWMutex

	generations []uint32         // index -> generation; -1 (via alive bit below) tracked separately
	live        []bool           // index -> currently alive
	lifecycle   []LifecycleState // index -> lifecycle phase, valid only while live
	freeList    []uint32
	next        uint32
	alive       int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Create allocates a fresh handle, preferring a reused slot from the
// free-list so indices stay dense.
func (r *Registry) Create() EntityHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.freeList); n > 0 {
		index = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
	} else {
		index = r.next
		r.next++
		r.generations = append(r.generations, 0)
		r.live = append(r.live, false)
		r.lifecycle = append(r.lifecycle, Active)
	}
	r.live[index] = true
	r.lifecycle[index] = Active
	r.alive++
	return EntityHandle{Index: index, Generation: r.generations[index]}
}

// Destroy bumps the generation at h.Index and returns the slot to the
// free-list. Destroying an already-dead or unknown handle is a no-op: the
// registry never resolves a handle twice, so a repeated destroy is
// harmless rather than an error.
func (r *Registry) Destroy(h EntityHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if int(h.Index) >= len(r.generations) || !r.live[h.Index] || r.generations[h.Index] != h.Generation {
		return
	}
	r.generations[h.Index]++
	r.live[h.Index] = false
	r.freeList = append(r.freeList, h.Index)
	r.alive--
}

// IsAlive reports whether h still resolves to a live entity.
func (r *Registry) IsAlive(h EntityHandle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int(h.Index) < len(r.generations) && r.live[h.Index] && r.generations[h.Index] == h.Generation
}

// Resolve reconstructs the current handle for a raw index, used when an
// external collaborator (spatial hashing, navigation) hands back a bare
// index it cached. It fails if the index was never allocated.
func (r *Registry) Resolve(index uint32) (EntityHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(index) >= len(r.generations) {
		return EntityHandle{}, false
	}
	return EntityHandle{Index: index, Generation: r.generations[index]}, true
}

// AliveCount returns the number of currently live entities.
func (r *Registry) AliveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alive
}

// LifecycleState returns h's current lifecycle phase, or Dead if h does not
// resolve to a live entity.
func (r *Registry) LifecycleState(h EntityHandle) LifecycleState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(h.Index) >= len(r.generations) || !r.live[h.Index] || r.generations[h.Index] != h.Generation {
		return Dead
	}
	return r.lifecycle[h.Index]
}

// SetLifecycleState sets h's lifecycle phase. It is a no-op if h does not
// resolve to a live entity.
func (r *Registry) SetLifecycleState(h EntityHandle, state LifecycleState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(h.Index) >= len(r.generations) || !r.live[h.Index] || r.generations[h.Index] != h.Generation {
		return
	}
	r.lifecycle[h.Index] = state
}

// SyncFrom overwrites r's liveness and generation state with a copy of
// other's, used when building or refreshing a replica: a replica's
// registry must agree with the live repository about which handles still
// resolve, independent of which chunks happen to be dirty this tick.
func (r *Registry) SyncFrom(other *Registry) {
	other.mu.RLock()
	gens := append([]uint32(nil), other.generations...)
	live := append([]bool(nil), other.live...)
	lifecycle := append([]LifecycleState(nil), other.lifecycle...)
	freeList := append([]uint32(nil), other.freeList...)
	next := other.next
	alive := other.alive
	other.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = gens
	r.live = live
	r.lifecycle = lifecycle
	r.freeList = freeList
	r.next = next
	r.alive = alive
}
