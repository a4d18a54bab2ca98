package lifecycle_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/simkernel/kernel/lifecycle"
	"github.com/simkernel/kernel/world"
)

func newRepo(t *testing.T) *world.Repository {
	t.Helper()
	s := world.NewSchema()
	if err := lifecycle.RegisterEvents(s); err != nil {
		t.Fatalf("register lifecycle events: %v", err)
	}
	return world.NewRepository(s, 4)
}

func TestAckReturnsTrueOnlyOnFullQuorum(t *testing.T) {
	repo := newRepo(t)
	e := repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	a, b := uuid.New(), uuid.New()

	cmd := world.NewCommandBuffer()
	op := c.Begin(cmd, e, lifecycle.Construction, 1, []lifecycle.ParticipantID{a, b}, 0, 100)
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback begin: %v", err)
	}
	if got := repo.LifecycleState(e); got != world.Constructing {
		t.Fatalf("expected entity to be Constructing after Begin, got %v", got)
	}

	cmd = world.NewCommandBuffer()
	if c.Ack(cmd, e, a, true) {
		t.Fatalf("expected partial ack to not complete the round")
	}
	acked, required, pending := c.Status(op)
	if acked != 1 || required != 2 || !pending {
		t.Fatalf("expected 1/2 acked and still pending, got %d/%d pending=%v", acked, required, pending)
	}

	if !c.Ack(cmd, e, b, true) {
		t.Fatalf("expected the final ack to complete the round")
	}
	if _, _, pending := c.Status(op); pending {
		t.Fatalf("expected a completed operation to no longer be pending")
	}
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback acks: %v", err)
	}
	if got := repo.LifecycleState(e); got != world.Active {
		t.Fatalf("expected entity to become Active once the quorum completed, got %v", got)
	}
}

func TestAckIgnoresUnknownParticipantAndEntity(t *testing.T) {
	repo := newRepo(t)
	e := repo.CreateEntity()
	stray := repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	a, stranger := uuid.New(), uuid.New()

	cmd := world.NewCommandBuffer()
	op := c.Begin(cmd, e, lifecycle.Construction, 1, []lifecycle.ParticipantID{a}, 0, 100)
	_ = cmd.Playback(repo)

	cmd = world.NewCommandBuffer()
	if c.Ack(cmd, e, stranger, true) {
		t.Fatalf("expected an ack from a non-participant to be ignored")
	}
	if c.Ack(cmd, stray, a, true) {
		t.Fatalf("expected an ack against an entity with no pending round to be ignored")
	}
	if acked, _, _ := c.Status(op); acked != 0 {
		t.Fatalf("expected no acks recorded, got %d", acked)
	}
}

func TestFailedAckAbortsAndDestroysTheEntity(t *testing.T) {
	repo := newRepo(t)
	e := repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	a, b := uuid.New(), uuid.New()

	cmd := world.NewCommandBuffer()
	c.Begin(cmd, e, lifecycle.Construction, 1, []lifecycle.ParticipantID{a, b}, 0, 100)
	_ = cmd.Playback(repo)

	cmd = world.NewCommandBuffer()
	if !c.Ack(cmd, e, a, false) {
		t.Fatalf("expected a failed ack to resolve the round immediately")
	}
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback failed ack: %v", err)
	}
	if repo.IsAlive(e) {
		t.Fatalf("expected a failed construction ack to destroy the entity")
	}
}

// Scenario: participants {1,2,3}, timeout_frames=300. begin_construction at
// tick 10; acks arrive at ticks 11, 12, 14 from each participant in turn.
// At tick 14 the entity transitions Constructing -> Active.
func TestConstructionQuorumAcrossTicks(t *testing.T) {
	repo := newRepo(t)
	e := repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()

	cmd := world.NewCommandBuffer()
	c.Begin(cmd, e, lifecycle.Construction, 7, []lifecycle.ParticipantID{p1, p2, p3}, 10, 300)
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback begin: %v", err)
	}

	cmd = world.NewCommandBuffer()
	c.Ack(cmd, e, p1, true)
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback ack 1: %v", err)
	}
	if repo.LifecycleState(e) != world.Constructing {
		t.Fatalf("expected entity to still be Constructing after a partial quorum")
	}

	cmd = world.NewCommandBuffer()
	c.Ack(cmd, e, p2, true)
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback ack 2: %v", err)
	}
	if repo.LifecycleState(e) != world.Constructing {
		t.Fatalf("expected entity to still be Constructing after a partial quorum")
	}

	cmd = world.NewCommandBuffer()
	complete := c.Ack(cmd, e, p3, true)
	if !complete {
		t.Fatalf("expected the third ack to complete the quorum")
	}
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback ack 3: %v", err)
	}
	if repo.LifecycleState(e) != world.Active {
		t.Fatalf("expected entity to become Active once all three participants acked")
	}

	cmd = world.NewCommandBuffer()
	if errs := c.CheckTimeouts(cmd, 310); len(errs) != 0 {
		t.Fatalf("expected no timeout on an already completed round, got %v", errs)
	}
}

func TestCheckTimeoutsForcesDestructionAndEvictsExpiredOperations(t *testing.T) {
	repo := newRepo(t)
	e := repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	a, b := uuid.New(), uuid.New()

	cmd := world.NewCommandBuffer()
	op := c.Begin(cmd, e, lifecycle.Destruction, 0, []lifecycle.ParticipantID{a, b}, 10, 5)
	_ = cmd.Playback(repo)

	cmd = world.NewCommandBuffer()
	c.Ack(cmd, e, a, true)
	_ = cmd.Playback(repo)

	cmd = world.NewCommandBuffer()
	if errs := c.CheckTimeouts(cmd, 14); len(errs) != 0 {
		t.Fatalf("expected no timeout before the deadline, got %v", errs)
	}

	cmd = world.NewCommandBuffer()
	errs := c.CheckTimeouts(cmd, 15)
	if len(errs) != 1 {
		t.Fatalf("expected exactly one timeout error, got %d", len(errs))
	}
	if errs[0].Op != op || errs[0].Kind != lifecycle.Destruction || errs[0].Entity != e {
		t.Fatalf("unexpected timeout error contents: %+v", errs[0])
	}
	if len(errs[0].Missing) != 1 || errs[0].Missing[0] != b {
		t.Fatalf("expected only participant b to be reported missing, got %v", errs[0].Missing)
	}
	if _, _, pending := c.Status(op); pending {
		t.Fatalf("expected a timed-out operation to be evicted")
	}
	if c.TimeoutCount() != 1 {
		t.Fatalf("expected the timeout counter to increment, got %d", c.TimeoutCount())
	}
	if err := cmd.Playback(repo); err != nil {
		t.Fatalf("playback timeout: %v", err)
	}
	if repo.IsAlive(e) {
		t.Fatalf("expected a timed-out round to destroy the entity")
	}
}

func TestPendingCountTracksInFlightOperations(t *testing.T) {
	repo := newRepo(t)
	e1, e2 := repo.CreateEntity(), repo.CreateEntity()
	c := lifecycle.NewCoordinator(nil)
	a := uuid.New()
	if c.PendingCount() != 0 {
		t.Fatalf("expected zero pending operations initially")
	}

	cmd := world.NewCommandBuffer()
	op1 := c.Begin(cmd, e1, lifecycle.Construction, 1, []lifecycle.ParticipantID{a}, 0, 100)
	c.Begin(cmd, e2, lifecycle.Construction, 1, []lifecycle.ParticipantID{a}, 0, 100)
	_ = cmd.Playback(repo)
	if c.PendingCount() != 2 {
		t.Fatalf("expected 2 pending operations, got %d", c.PendingCount())
	}

	cmd = world.NewCommandBuffer()
	c.Ack(cmd, e1, a, true)
	_ = cmd.Playback(repo)
	if _, _, pending := c.Status(op1); pending {
		t.Fatalf("expected op1 to have completed")
	}
	if c.PendingCount() != 1 {
		t.Fatalf("expected 1 pending operation after completing one, got %d", c.PendingCount())
	}
}
