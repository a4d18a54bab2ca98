package world

// EventBus holds one double buffer per registered event type: a publish
// buffer accepting writes this tick and a consume buffer visible to
// readers until the next swap. The live bus is only ever
// mutated on the repository's owning thread — background modules never
// call Publish directly, they record a publish_event entry in their
// command buffer, which is played back here on the main thread — so
// EventBus itself needs no internal locking.
type EventBus struct {
	streams map[EventID]*eventStream
}

type eventStream struct {
	publish []any
	consume []any
}

// NewEventBus returns an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{streams: make(map[EventID]*eventStream)}
}

func (b *EventBus) ensure(id EventID) *eventStream {
	s, ok := b.streams[id]
	if !ok {
		s = &eventStream{}
		b.streams[id] = s
	}
	return s
}

// Publish appends value to id's publish buffer. Called only during
// command buffer playback.
func (b *EventBus) Publish(id EventID, value any) {
	s := b.ensure(id)
	s.publish = append(s.publish, value)
}

// SwapBuffers atomically (from the single-threaded caller's perspective)
// exchanges each stream's publish and consume buffers and clears the new
// publish buffer, so events published this tick become the next tick's
// consume buffer.
func (b *EventBus) SwapBuffers() {
	for _, s := range b.streams {
		s.consume, s.publish = s.publish, s.consume[:0]
	}
}

// consumeRaw returns the current consume buffer for id.
func (b *EventBus) consumeRaw(id EventID) []any {
	s, ok := b.streams[id]
	if !ok {
		return nil
	}
	return s.consume
}

// CopyConsumeInto copies every stream's current consume buffer into dst,
// giving dst an independent, read-only projection taken at this instant.
// Replicas and pooled/shared snapshots use this so module observers in
// the same tick see identical events regardless of snapshot strategy.
func (b *EventBus) CopyConsumeInto(dst *EventBus) {
	for id, s := range b.streams {
		ds := dst.ensure(id)
		ds.consume = append(ds.consume[:0], s.consume...)
	}
}

// PublishEvent resolves T's EventID against schema and appends value to
// the bus's publish buffer directly. It exists for tests and for
// synchronous modules that hold a live, same-thread view; background
// modules must instead go through a CommandBuffer.
func PublishEvent[T any](b *EventBus, schema *Schema, value T) error {
	id, ok := EventIDFor[T](schema)
	if !ok {
		return &UnknownEventError{ID: -1}
	}
	b.Publish(id, value)
	return nil
}

// ConsumeEvents returns a copy of the current consume buffer for T,
// resolved against schema. The returned slice is always a fresh copy: it
// is read-only input data, never a window into mutable bus storage, so
// callers can never accidentally mutate bus storage through it.
func ConsumeEvents[T any](b *EventBus, schema *Schema) ([]T, error) {
	id, ok := EventIDFor[T](schema)
	if !ok {
		return nil, &UnknownEventError{ID: -1}
	}
	raw := b.consumeRaw(id)
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]T, len(raw))
	for i, v := range raw {
		out[i] = v.(T)
	}
	return out, nil
}
