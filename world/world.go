// Package world implements the entity/component repository: the
// authoritative store of entities, their components, the double-buffered
// event bus, command buffer playback, and per-type singleton state that a
// simulation's systems and modules operate on.
package world

import (
	"reflect"
	"sync/atomic"

	"github.com/simkernel/kernel/world/chunk"
)

// Repository is the single authoritative owner of one simulation's entity
// and component data. Snapshot providers read from it and write replicas
// derived from it; only the Repository's own owning thread ever mutates it
// directly (through CreateEntity/DestroyEntity/AddComponent/... or command
// buffer playback).
type Repository struct {
	schema     *Schema
	registry   *Registry
	store      *Store
	eventBus   *EventBus
	singletons *SingletonTable

	tick    uint64
	simTime float64

	// version is bumped on every component or event mutation, independent
	// of the tick counter. componentTouched/eventTouched record the
	// version a given type was last touched at, so a reactive watcher can
	// snapshot "as of now" and later ask "did this change since" without
	// needing the tick loop's own synchronization.
	version          atomic.Uint64
	componentTouched []atomic.Uint64
	eventTouched     []atomic.Uint64
}

// NewRepository returns an empty Repository. schema must already have every
// component and event type registered that this repository will ever use;
// a Repository never mutates the schema it is given.
func NewRepository(schema *Schema, chunkCapacity int) *Repository {
	r := &Repository{
		schema:           schema,
		registry:         NewRegistry(),
		store:            NewStore(chunkCapacity),
		eventBus:         NewEventBus(),
		singletons:       NewSingletonTable(),
		componentTouched: make([]atomic.Uint64, schema.ComponentCount()),
		eventTouched:     make([]atomic.Uint64, schema.EventCount()),
	}
	schema.mu.RLock()
	defer schema.mu.RUnlock()
	for _, c := range schema.components {
		if c.kind == Unmanaged {
			r.store.raw.RegisterCopyFunc(chunk.ComponentID(c.id), func(v any) any {
				src := reflect.ValueOf(v).Elem()
				cp := reflect.New(src.Type())
				cp.Elem().Set(src)
				return cp.Interface()
			})
		}
	}
	return r
}

// Schema returns the repository's component/event schema.
func (r *Repository) Schema() *Schema { return r.schema }

// EventBus returns the repository's live event bus.
func (r *Repository) EventBus() *EventBus { return r.eventBus }

// Singletons returns the repository's singleton table.
func (r *Repository) Singletons() *SingletonTable { return r.singletons }

// Store returns the repository's chunked component store.
func (r *Repository) Store() *Store { return r.store }

// CurrentTick returns the number of completed ticks.
func (r *Repository) CurrentTick() uint64 { return r.tick }

// CurrentTime returns the accumulated simulation time, in seconds.
func (r *Repository) CurrentTime() float64 { return r.simTime }

// AdvanceTime accumulates dt seconds onto the simulation clock. It is
// called once per tick, alongside EndTick.
func (r *Repository) AdvanceTime(dt float64) { r.simTime += dt }

// LifecycleState returns h's current construction/destruction phase.
func (r *Repository) LifecycleState(h EntityHandle) LifecycleState {
	return r.registry.LifecycleState(h)
}

// SetLifecycleState sets h's lifecycle phase directly. Most callers should
// prefer routing this through a command buffer (BufferSetLifecycleState) so
// the change is applied at a well-defined point in the tick.
func (r *Repository) SetLifecycleState(h EntityHandle, state LifecycleState) {
	r.registry.SetLifecycleState(h, state)
}

// CurrentVersion returns the repository's monotonic mutation counter, bumped
// on every component or event change. It is independent of the tick
// counter and safe to read from any goroutine.
func (r *Repository) CurrentVersion() uint64 { return r.version.Load() }

// touchComponent bumps the global version and records it against id, used
// by component mutators so a reactive watcher can later ask whether id
// changed since a recorded version.
func (r *Repository) touchComponent(id ComponentID) {
	v := r.version.Add(1)
	if int(id) >= 0 && int(id) < len(r.componentTouched) {
		r.componentTouched[id].Store(v)
	}
}

// touchEvent bumps the global version and records it against id, used when
// an event is published so a reactive watcher can ask whether id was
// published since a recorded version.
func (r *Repository) touchEvent(id EventID) {
	v := r.version.Add(1)
	if int(id) >= 0 && int(id) < len(r.eventTouched) {
		r.eventTouched[id].Store(v)
	}
}

// ComponentChangedSince reports whether id was added, set, or removed on
// any entity after since.
func (r *Repository) ComponentChangedSince(id ComponentID, since uint64) bool {
	if int(id) < 0 || int(id) >= len(r.componentTouched) {
		return false
	}
	return r.componentTouched[id].Load() > since
}

// EventPublishedSince reports whether id was published after since.
func (r *Repository) EventPublishedSince(id EventID, since uint64) bool {
	if int(id) < 0 || int(id) >= len(r.eventTouched) {
		return false
	}
	return r.eventTouched[id].Load() > since
}

// CreateEntity allocates a new entity handle with the empty archetype.
func (r *Repository) CreateEntity() EntityHandle {
	h := r.registry.Create()
	r.store.spawn(h.Index)
	return h
}

// DestroyEntity releases h's row and invalidates its handle. It is a no-op
// if h is already dead.
func (r *Repository) DestroyEntity(h EntityHandle) {
	if !r.registry.IsAlive(h) {
		return
	}
	r.store.despawn(h.Index)
	r.registry.Destroy(h)
}

// IsAlive reports whether h still refers to a live entity.
func (r *Repository) IsAlive(h EntityHandle) bool {
	return r.registry.IsAlive(h)
}

// AliveCount returns the number of currently live entities.
func (r *Repository) AliveCount() int { return r.registry.AliveCount() }

// Query starts a new with/without filter over the repository's current
// entities. Use the package-level With/Without functions to narrow it.
func (r *Repository) Query() *QueryBuilder {
	return newQueryBuilder(r.schema, r.store, r.registry)
}

// EndTick clears every chunk's dirty flag, swaps the event bus's publish
// and consume buffers, and advances the tick counter. It must run after
// every snapshot provider has synced this tick's dirty data, and before
// the next tick's systems run.
func (r *Repository) EndTick() {
	r.store.ClearDirty()
	r.eventBus.SwapBuffers()
	r.tick++
}
