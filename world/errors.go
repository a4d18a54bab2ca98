package world

import "fmt"

// UnknownComponentError reports use of a component ID the schema never
// registered. It is a schema mismatch and is always fatal, surfaced to the
// caller even during command buffer playback.
type UnknownComponentError struct {
	ID ComponentID
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("world: unknown component id %d", e.ID)
}

// UnknownEventError reports use of an event ID the schema never registered.
type UnknownEventError struct {
	ID EventID
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("world: unknown event id %d", e.ID)
}

// DeadEntityError reports an operation targeting a destroyed entity handle.
// Command buffer playback treats this as a silent skip; direct API calls
// return it as an explicit error.
type DeadEntityError struct {
	Handle EntityHandle
}

func (e *DeadEntityError) Error() string {
	return fmt.Sprintf("world: entity %+v is dead", e.Handle)
}

// MissingComponentError reports set_component called on an entity that does
// not currently have the targeted component. See DESIGN.md / SPEC_FULL.md
// §7(2) for why set is update-only and never an implicit insert.
type MissingComponentError struct {
	Handle EntityHandle
	ID     ComponentID
}

func (e *MissingComponentError) Error() string {
	return fmt.Sprintf("world: entity %+v has no component %d", e.Handle, e.ID)
}

// DuplicateRegistrationError reports a second registration of the same
// component or event name/type against a Schema.
type DuplicateRegistrationError struct {
	Name   string
	Reason string
}

func (e *DuplicateRegistrationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("world: duplicate registration of %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("world: duplicate registration of %q", e.Name)
}

// MissingSingletonError reports a read of a singleton value that was never
// set.
type MissingSingletonError struct {
	Type string
}

func (e *MissingSingletonError) Error() string {
	return fmt.Sprintf("world: missing singleton %s", e.Type)
}
