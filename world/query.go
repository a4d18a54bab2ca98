package world

import (
	"context"

	"github.com/segmentio/fasthash/fnv1a"
	"golang.org/x/sync/errgroup"

	"github.com/simkernel/kernel/world/chunk"
)

// QueryBuilder composes a with/without archetype filter and runs it over a
// store's chunks in deterministic creation order.
type QueryBuilder struct {
	schema   *Schema
	store    *Store
	registry *Registry

	with    chunk.Archetype
	without chunk.Archetype

	includeAllStates bool

	cacheKey uint64
	cached   bool
}

func newQueryBuilder(schema *Schema, store *Store, registry *Registry) *QueryBuilder {
	return &QueryBuilder{schema: schema, store: store, registry: registry}
}

// With restricts the query to entities that currently have T.
func With[T any](q *QueryBuilder) *QueryBuilder {
	id, ok := ComponentIDFor[T](q.schema)
	if !ok {
		return q
	}
	q.with = q.with.With(chunk.ComponentID(id))
	q.cached = false
	return q
}

// Without restricts the query to entities that currently do not have T.
func Without[T any](q *QueryBuilder) *QueryBuilder {
	id, ok := ComponentIDFor[T](q.schema)
	if !ok {
		return q
	}
	q.without = q.without.With(chunk.ComponentID(id))
	q.cached = false
	return q
}

func (q *QueryBuilder) matches(a chunk.Archetype) bool {
	return a&q.with == q.with && a&q.without == 0
}

// IncludeAllLifecycleStates disables the default Active-only visibility
// filter, so Constructing and Destroying entities are also visited. Used by
// lifecycle participants that must observe an entity mid-construction or
// mid-teardown; ordinary systems should never need this.
func (q *QueryBuilder) IncludeAllLifecycleStates() *QueryBuilder {
	q.includeAllStates = true
	return q
}

// fingerprint returns a stable hash of this query's filter, usable as a
// cache key by callers that re-run the same query shape every tick.
func (q *QueryBuilder) fingerprint() uint64 {
	if q.cached {
		return q.cacheKey
	}
	h := fnv1a.Init64
	h = fnv1a.AddUint64(h, uint64(q.with))
	h = fnv1a.AddUint64(h, uint64(q.without))
	q.cacheKey = h
	q.cached = true
	return h
}

// matchingChunks returns every chunk satisfying the filter, in the store's
// deterministic creation order.
func (q *QueryBuilder) matchingChunks() []*chunk.Chunk {
	all := q.store.Chunks()
	out := make([]*chunk.Chunk, 0, len(all))
	for _, c := range all {
		if q.matches(c.Archetype()) {
			out = append(out, c)
		}
	}
	return out
}

// ForEach calls fn once per matching entity, in deterministic chunk and row
// order, on the caller's own goroutine. Handles are resolved through the
// registry so fn always sees the entity's current generation. Entities
// still Constructing or already Destroying are skipped unless
// IncludeAllLifecycleStates was called.
func (q *QueryBuilder) ForEach(fn func(h EntityHandle)) {
	for _, c := range q.matchingChunks() {
		for row := 0; row < c.Len(); row++ {
			idx := c.EntityAt(row)
			h, ok := q.registry.Resolve(idx)
			if !ok {
				continue
			}
			if !q.includeAllStates && q.registry.LifecycleState(h) != Active {
				continue
			}
			fn(h)
		}
	}
}

// ForEachParallel calls fn once per matching chunk, fanned out across an
// errgroup-managed worker pool; fn runs sequentially over the rows within
// its own chunk, so per-chunk ordering stays deterministic even though
// chunks themselves run concurrently. Returns the first error any worker
// returns, after every worker has finished.
//
// Unlike ForEach, this does not filter by lifecycle state: fn receives
// whole chunks, not individual rows, and a chunk mixing Active with
// Constructing/Destroying rows can't be split without losing the
// per-chunk columnar access this exists to provide. Callers that fan out
// over chunks and care about lifecycle visibility must check
// Repository.LifecycleState per row themselves.
func (q *QueryBuilder) ForEachParallel(ctx context.Context, fn func(c *chunk.Chunk) error) error {
	chunks := q.matchingChunks()
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return fn(c)
		})
	}
	return g.Wait()
}

// Count returns the number of entities matching the filter.
func (q *QueryBuilder) Count() int {
	if q.includeAllStates {
		n := 0
		for _, c := range q.matchingChunks() {
			n += c.Len()
		}
		return n
	}
	n := 0
	q.ForEach(func(EntityHandle) { n++ })
	return n
}
