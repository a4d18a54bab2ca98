package world

// LifecycleState is the coarse construction/destruction phase an entity is
// in. Active is the default and only state a freshly created entity ever
// starts in; Constructing and Destroying are entered and left only through
// SetLifecycleState, normally driven by a lifecycle coordinator playing
// back a command buffer. Dead is reported for any handle that no longer
// resolves.
type LifecycleState uint8

const (
	// Active entities are visible to ordinary With/Without queries.
	Active LifecycleState = iota
	// Constructing entities are mid-construction: visible only to direct
	// handle access (GetRO, HasComponent) and lifecycle participants, not
	// to ordinary queries.
	Constructing
	// Destroying entities are mid-teardown, under the same visibility
	// restriction as Constructing.
	Destroying
	// Dead is reported for a handle that does not resolve to a live
	// entity; it is never stored as a live entity's state.
	Dead
)

// String returns the lifecycle state's name.
func (s LifecycleState) String() string {
	switch s {
	case Active:
		return "Active"
	case Constructing:
		return "Constructing"
	case Destroying:
		return "Destroying"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}
