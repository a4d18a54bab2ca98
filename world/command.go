package world

// PendingEntity is a handle to an entity that a command buffer will create
// during its own playback. It can be passed as the target of any other
// buffered command recorded after the CreateEntity call that produced it,
// letting a caller wire up a freshly created entity's components and
// events before the entity itself exists.
type PendingEntity struct {
	idx int
}

type commandOp func(r *Repository, resolved []EntityHandle) error

// CommandBuffer records a FIFO sequence of mutations against a Repository
// for later, single-threaded playback. Producers append to a buffer from
// any thread; a buffer itself is not safe for concurrent recording, so
// each producer (module, worker) owns its own buffer and buffers are
// merged only at playback time.
type CommandBuffer struct {
	pendingCount int
	ops          []commandOp
}

// NewCommandBuffer returns an empty CommandBuffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

func resolveTarget(target any, resolved []EntityHandle) (EntityHandle, bool) {
	switch t := target.(type) {
	case EntityHandle:
		return t, true
	case PendingEntity:
		if t.idx < 0 || t.idx >= len(resolved) {
			return EntityHandle{}, false
		}
		return resolved[t.idx], true
	default:
		return EntityHandle{}, false
	}
}

// CreateEntity records an entity creation and returns a placeholder that
// can be used as the target of commands recorded later in this buffer.
func (b *CommandBuffer) CreateEntity() PendingEntity {
	p := PendingEntity{idx: b.pendingCount}
	b.pendingCount++
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		resolved[p.idx] = r.CreateEntity()
		return nil
	})
	return p
}

// DestroyEntity records an entity destruction. target is either an
// EntityHandle or a PendingEntity from this same buffer. A target already
// dead at playback time is silently skipped.
func (b *CommandBuffer) DestroyEntity(target any) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		h, ok := resolveTarget(target, resolved)
		if !ok || !r.registry.IsAlive(h) {
			return nil
		}
		r.DestroyEntity(h)
		return nil
	})
}

// BufferAddComponent records an add_component call against target. An
// unknown component type is a fatal error surfaced from Playback; a
// target dead by playback time is silently skipped.
func BufferAddComponent[T any](b *CommandBuffer, target any, value T) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		h, ok := resolveTarget(target, resolved)
		if !ok || !r.registry.IsAlive(h) {
			return nil
		}
		return AddComponent[T](r, h, value)
	})
}

// BufferSetComponent records a set_component call against target. An
// unknown component type, or a missing component on an otherwise live
// entity, is a fatal error surfaced from Playback; a dead target is
// silently skipped.
func BufferSetComponent[T any](b *CommandBuffer, target any, value T) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		h, ok := resolveTarget(target, resolved)
		if !ok || !r.registry.IsAlive(h) {
			return nil
		}
		return SetComponent[T](r, h, value)
	})
}

// BufferRemoveComponent records a remove_component call against target.
func BufferRemoveComponent[T any](b *CommandBuffer, target any) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		h, ok := resolveTarget(target, resolved)
		if !ok || !r.registry.IsAlive(h) {
			return nil
		}
		return RemoveComponent[T](r, h)
	})
}

// BufferPublishEvent records an event publish. Unlike the component calls,
// it has no entity target and so is never skipped: it always applies at
// playback.
func BufferPublishEvent[T any](b *CommandBuffer, value T) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		if err := PublishEvent[T](r.eventBus, r.schema, value); err != nil {
			return err
		}
		if id, ok := EventIDFor[T](r.schema); ok {
			r.touchEvent(id)
		}
		return nil
	})
}

// BufferSetLifecycleState records a set_lifecycle_state call against
// target. A dead target is silently skipped.
func BufferSetLifecycleState(b *CommandBuffer, target any, state LifecycleState) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		h, ok := resolveTarget(target, resolved)
		if !ok || !r.registry.IsAlive(h) {
			return nil
		}
		r.SetLifecycleState(h, state)
		return nil
	})
}

// BufferSetSingleton records a singleton replace.
func BufferSetSingleton[T any](b *CommandBuffer, value T) {
	b.ops = append(b.ops, func(r *Repository, resolved []EntityHandle) error {
		SetSingleton[T](r.singletons, value)
		return nil
	})
}

// Playback applies every recorded command to r in FIFO order on the
// caller's thread, then clears the buffer for reuse. It stops and returns
// the first fatal error encountered (an unknown component or event type,
// or a set on an entity lacking that component);
// commands already applied before the error are not rolled back.
func (b *CommandBuffer) Playback(r *Repository) error {
	resolved := make([]EntityHandle, b.pendingCount)
	for _, op := range b.ops {
		if err := op(r, resolved); err != nil {
			return err
		}
	}
	b.ops = b.ops[:0]
	b.pendingCount = 0
	return nil
}

// Len returns the number of commands currently buffered.
func (b *CommandBuffer) Len() int { return len(b.ops) }
