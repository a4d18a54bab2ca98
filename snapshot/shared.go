package snapshot

import (
	"sync"

	"github.com/simkernel/kernel/world"
)

// Shared is the refcounted shared snapshot strategy: at most one replica
// is built per tick no matter how many modules acquire it. The first
// acquire of a later tick rebuilds that replica in place once every
// holder of it has released its view, and builds a new replica while any
// holder still has one. It fits a cluster of modules that all want "this
// tick's data" without each paying for its own sync.
type Shared struct {
	schema        *world.Schema
	chunkCapacity int
	filter        map[world.ComponentID]bool

	mu        sync.Mutex
	current   *world.Repository
	builtTick uint64
	hasBuilt  bool
	refs      int
}

// NewShared returns a Shared snapshot over schema, restricted to filter
// (nil copies every registered component).
func NewShared(schema *world.Schema, chunkCapacity int, filter map[world.ComponentID]bool) *Shared {
	return &Shared{schema: schema, chunkCapacity: chunkCapacity, filter: filter}
}

// Kind returns KindShared.
func (s *Shared) Kind() Kind { return KindShared }

// AcquireView returns a view over this tick's shared replica, building it
// on the first acquire of a new tick and reusing it for every subsequent
// acquire of the same tick.
func (s *Shared) AcquireView(live *world.Repository, cmd *world.CommandBuffer) *world.View {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := live.CurrentTick()
	if !s.hasBuilt || s.builtTick != tick {
		if s.current == nil || s.refs > 0 {
			s.current = world.NewRepository(s.schema, s.chunkCapacity)
		}
		s.current.SyncFrom(live, s.filter)
		s.builtTick = tick
		s.hasBuilt = true
		s.refs = 0
	}
	s.refs++
	return world.NewView(s.current, cmd, s.current.CurrentTick(), float32(s.current.CurrentTime()))
}

// ReleaseView decrements the shared replica's refcount. The replica itself
// is not freed on zero: it stays ready to be rebuilt in place next tick.
func (s *Shared) ReleaseView(v *world.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Repo() == s.current && s.refs > 0 {
		s.refs--
	}
}
