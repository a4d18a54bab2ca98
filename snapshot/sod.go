package snapshot

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/simkernel/kernel/world"
)

// SoD is the on-demand snapshot strategy: a replica is synced fresh on
// every acquire rather than kept current every tick, and idle replicas are
// pooled so repeated acquires don't keep reallocating chunk storage. A
// weighted semaphore bounds how many replicas can be checked out at once,
// so a burst of readers can't force unbounded memory growth.
type SoD struct {
	schema        *world.Schema
	chunkCapacity int
	filter        map[world.ComponentID]bool

	sem *semaphore.Weighted

	mu   sync.Mutex
	pool []*world.Repository
}

// NewSoD returns a SoD snapshot over schema, restricted to filter (nil
// copies every registered component), allowing at most maxConcurrent
// replicas checked out at once.
func NewSoD(schema *world.Schema, chunkCapacity int, maxConcurrent int64, filter map[world.ComponentID]bool) *SoD {
	return &SoD{
		schema:        schema,
		chunkCapacity: chunkCapacity,
		filter:        filter,
		sem:           semaphore.NewWeighted(maxConcurrent),
	}
}

// Kind returns KindSoD.
func (s *SoD) Kind() Kind { return KindSoD }

func (s *SoD) take() *world.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.pool); n > 0 {
		r := s.pool[n-1]
		s.pool = s.pool[:n-1]
		return r
	}
	return world.NewRepository(s.schema, s.chunkCapacity)
}

func (s *SoD) give(r *world.Repository) {
	r.ResetForReuse()
	s.mu.Lock()
	s.pool = append(s.pool, r)
	s.mu.Unlock()
}

// AcquireView blocks until a checkout slot is available (or ctx is
// cancelled), then returns a freshly synced replica view recording
// mutations into cmd.
func (s *SoD) AcquireView(ctx context.Context, live *world.Repository, cmd *world.CommandBuffer) (*world.View, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	r := s.take()
	r.SyncFrom(live, s.filter)
	return world.NewView(r, cmd, r.CurrentTick(), float32(r.CurrentTime())), nil
}

// ReleaseView returns v's replica to the pool and frees its checkout slot.
func (s *SoD) ReleaseView(v *world.View) {
	s.give(v.Repo())
	s.sem.Release(1)
}
