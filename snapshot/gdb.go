package snapshot

import (
	"sync"

	"github.com/simkernel/kernel/world"
)

// GDB is the persistent double-buffered snapshot strategy. One replica is
// always "front" and readable without blocking; Update syncs the other
// ("back") from the live repository and then swaps, so readers never
// observe a partially synced replica and never wait on a sync in
// progress.
type GDB struct {
	mu    sync.RWMutex
	front *world.Repository
	back  *world.Repository

	filter map[world.ComponentID]bool
}

// NewGDB returns a GDB snapshot over schema, restricted to filter (nil
// copies every registered component).
func NewGDB(schema *world.Schema, chunkCapacity int, filter map[world.ComponentID]bool) *GDB {
	return &GDB{
		front:  world.NewRepository(schema, chunkCapacity),
		back:   world.NewRepository(schema, chunkCapacity),
		filter: filter,
	}
}

// Kind returns KindGDB.
func (g *GDB) Kind() Kind { return KindGDB }

// Update syncs the back replica from live and swaps it to front. It must
// be called from the repository's owning thread, after this tick's
// mutations are applied and before EndTick clears the dirty flags.
func (g *GDB) Update(live *world.Repository) {
	g.mu.RLock()
	back := g.back
	g.mu.RUnlock()

	back.SyncFrom(live, g.filter)

	g.mu.Lock()
	g.front, g.back = back, g.front
	g.mu.Unlock()
}

// AcquireView returns a view over the current front replica, recording
// mutations into cmd.
func (g *GDB) AcquireView(cmd *world.CommandBuffer) *world.View {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return world.NewView(g.front, cmd, g.front.CurrentTick(), float32(g.front.CurrentTime()))
}

// ReleaseView is a no-op: the front replica is persistent and never
// reclaimed by a release.
func (g *GDB) ReleaseView(v *world.View) {}
