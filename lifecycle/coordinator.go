// Package lifecycle coordinates two-phase entity construction and
// destruction across multiple participant modules that each need to
// acknowledge an order before the host considers the operation complete.
// A round is driven entirely through command buffer entries and event bus
// traffic: Begin and Ack never touch a repository directly, so every
// state transition they cause lands at the same well-defined point in the
// tick as any other module's writes.
package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/simkernel/kernel/world"
)

// ParticipantID identifies one acknowledging party, normally a module's ID.
type ParticipantID = uuid.UUID

// OperationID identifies one construction or destruction round.
type OperationID = uuid.UUID

// TypeID identifies what kind of thing is being constructed, passed
// through to participants via the ConstructionOrder event so they know
// which of their own templates to apply.
type TypeID uint32

// Kind distinguishes a construction round from a destruction round.
type Kind uint8

const (
	Construction Kind = iota
	Destruction
)

func (k Kind) String() string {
	if k == Destruction {
		return "destruction"
	}
	return "construction"
}

// ConstructionOrder is published when a construction round begins, naming
// the entity and the type participants should construct it as.
type ConstructionOrder struct {
	Entity world.EntityHandle
	Type   TypeID
}

// ConstructionAck is published for every construction acknowledgement a
// participant records, successful or not.
type ConstructionAck struct {
	Entity      world.EntityHandle
	Participant ParticipantID
	Success     bool
}

// DestructionOrder is published when a destruction round begins.
type DestructionOrder struct {
	Entity world.EntityHandle
}

// DestructionAck is published for every destruction acknowledgement a
// participant records.
type DestructionAck struct {
	Entity      world.EntityHandle
	Participant ParticipantID
	Success     bool
}

// RegisterEvents registers the four lifecycle event types on schema. It
// must run before any Coordinator using that schema's repository is
// exercised.
func RegisterEvents(schema *world.Schema) error {
	if _, err := world.RegisterEvent[ConstructionOrder](schema, "lifecycle_construction_order"); err != nil {
		return err
	}
	if _, err := world.RegisterEvent[ConstructionAck](schema, "lifecycle_construction_ack"); err != nil {
		return err
	}
	if _, err := world.RegisterEvent[DestructionOrder](schema, "lifecycle_destruction_order"); err != nil {
		return err
	}
	if _, err := world.RegisterEvent[DestructionAck](schema, "lifecycle_destruction_ack"); err != nil {
		return err
	}
	return nil
}

// TimeoutError reports an operation that did not collect every required
// acknowledgement within its timeout window.
type TimeoutError struct {
	Op      OperationID
	Kind    Kind
	Entity  world.EntityHandle
	Missing []ParticipantID
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("lifecycle: %s operation %s on entity %v timed out with %d participant(s) unacknowledged", e.Kind, e.Op, e.Entity, len(e.Missing))
}

type pendingOp struct {
	entity       world.EntityHandle
	kind         Kind
	typeID       TypeID
	startTick    uint64
	timeoutTicks uint64
	required     map[ParticipantID]bool
	acked        map[ParticipantID]bool
}

func (p *pendingOp) complete() bool {
	for id := range p.required {
		if !p.acked[id] {
			return false
		}
	}
	return true
}

func (p *pendingOp) missing() []ParticipantID {
	var out []ParticipantID
	for id := range p.required {
		if !p.acked[id] {
			out = append(out, id)
		}
	}
	return out
}

// Coordinator tracks every in-flight construction/destruction round and
// its acknowledgement quorum, and drives the LifecycleState transitions
// those rounds complete or abort through a CommandBuffer.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[OperationID]*pendingOp
	byEntity map[world.EntityHandle]OperationID
	timeouts int
	log      *slog.Logger
}

// NewCoordinator returns an empty Coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		pending:  make(map[OperationID]*pendingOp),
		byEntity: make(map[world.EntityHandle]OperationID),
		log:      logger,
	}
}

// Begin starts a new round on entity requiring an ack from every
// participant before currentTick+timeoutTicks. It records a
// set_lifecycle_state entry (Constructing or Destroying) and publishes the
// matching order event into cmd, and returns the round's operation ID. An
// entity can only have one round in flight at a time; beginning a second
// round on an entity already pending replaces the first.
func (c *Coordinator) Begin(cmd *world.CommandBuffer, entity world.EntityHandle, kind Kind, typeID TypeID, participants []ParticipantID, currentTick, timeoutTicks uint64) OperationID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.byEntity[entity]; ok {
		delete(c.pending, prior)
	}

	op := uuid.New()
	required := make(map[ParticipantID]bool, len(participants))
	for _, p := range participants {
		required[p] = true
	}
	c.pending[op] = &pendingOp{
		entity:       entity,
		kind:         kind,
		typeID:       typeID,
		startTick:    currentTick,
		timeoutTicks: timeoutTicks,
		required:     required,
		acked:        make(map[ParticipantID]bool, len(participants)),
	}
	c.byEntity[entity] = op

	if kind == Construction {
		world.BufferSetLifecycleState(cmd, entity, world.Constructing)
		world.BufferPublishEvent(cmd, ConstructionOrder{Entity: entity, Type: typeID})
	} else {
		world.BufferSetLifecycleState(cmd, entity, world.Destroying)
		world.BufferPublishEvent(cmd, DestructionOrder{Entity: entity})
	}

	c.log.Debug("lifecycle round started", "op", op, "kind", kind, "entity", entity, "participants", len(participants))
	return op
}

// Ack records participant's acknowledgement for entity's current round,
// publishing the matching ack event into cmd. A success=false ack aborts
// the round immediately, recording a destroy_entity command. A successful
// ack that completes the quorum drives entity to Active (construction) or
// schedules its destruction (destruction), also via cmd. Ack returns true
// if this call resolved the round (by completion or abort); acknowledging
// an entity with no pending round, or a participant not required by it,
// is a no-op returning false.
func (c *Coordinator) Ack(cmd *world.CommandBuffer, entity world.EntityHandle, participant ParticipantID, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, ok := c.byEntity[entity]
	if !ok {
		return false
	}
	p := c.pending[op]
	if !p.required[participant] {
		return false
	}

	if p.kind == Construction {
		world.BufferPublishEvent(cmd, ConstructionAck{Entity: entity, Participant: participant, Success: success})
	} else {
		world.BufferPublishEvent(cmd, DestructionAck{Entity: entity, Participant: participant, Success: success})
	}

	if !success {
		cmd.DestroyEntity(entity)
		delete(c.pending, op)
		delete(c.byEntity, entity)
		c.log.Debug("lifecycle round aborted", "op", op, "kind", p.kind, "entity", entity, "participant", participant)
		return true
	}

	p.acked[participant] = true
	if !p.complete() {
		return false
	}

	delete(c.pending, op)
	delete(c.byEntity, entity)

	if p.kind == Construction {
		world.BufferSetLifecycleState(cmd, entity, world.Active)
	} else {
		cmd.DestroyEntity(entity)
	}
	c.log.Debug("lifecycle round complete", "op", op, "kind", p.kind, "entity", entity)
	return true
}

// CheckTimeouts forces destruction of, and evicts, every pending
// operation whose deadline has passed as of currentTick, recording a
// destroy_entity command for each and returning a TimeoutError per
// timed-out round.
func (c *Coordinator) CheckTimeouts(cmd *world.CommandBuffer, currentTick uint64) []*TimeoutError {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []*TimeoutError
	for op, p := range c.pending {
		if currentTick-p.startTick < p.timeoutTicks {
			continue
		}
		cmd.DestroyEntity(p.entity)
		errs = append(errs, &TimeoutError{Op: op, Kind: p.kind, Entity: p.entity, Missing: p.missing()})
		delete(c.pending, op)
		delete(c.byEntity, p.entity)
		c.timeouts++
	}
	return errs
}

// Status reports how many of op's required participants have acked, and
// whether op is still pending.
func (c *Coordinator) Status(op OperationID) (acked, required int, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[op]
	if !ok {
		return 0, 0, false
	}
	return len(p.acked), len(p.required), true
}

// OperationFor returns the in-flight operation ID for entity, if any.
func (c *Coordinator) OperationFor(entity world.EntityHandle) (OperationID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.byEntity[entity]
	return op, ok
}

// PendingCount returns the number of in-flight operations.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// TimeoutCount returns the total number of rounds forced to a timeout
// destruction over this coordinator's lifetime.
func (c *Coordinator) TimeoutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts
}
