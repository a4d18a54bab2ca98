// Package module defines the Module contract, its execution policy, the
// scheduler that dispatches modules against a repository each tick, and
// the per-module circuit breaker that takes a persistently failing module
// offline instead of letting it stall or crash the whole host.
package module

import (
	"github.com/google/uuid"

	"github.com/simkernel/kernel/world"
)

// Module is a self-contained unit of simulation logic hosted by a
// Scheduler, which invokes its Tick according to its ExecutionPolicy. The
// contract has no system-registration hook: the Scheduler only ever calls
// Tick.
type Module interface {
	// Name identifies the module in logs and diagnostics.
	Name() string

	// Policy returns the module's execution policy. It is read once at
	// registration; changing it afterwards has no effect.
	Policy() ExecutionPolicy

	// WatchComponents lists component types the module reacts to. Once
	// the module has run, a dispatch that is due by its rate is skipped
	// unless one of these components (or a watched event) changed since
	// its last run. An empty list leaves dispatch to the rate alone.
	WatchComponents() []world.ComponentID

	// WatchEvents lists event types the module reacts to, gating dispatch
	// in the same way as WatchComponents.
	WatchEvents() []world.EventID

	// Tick runs the module's logic against v for one scheduling
	// invocation. dt is the wall-clock seconds elapsed since this
	// module's previous invocation (not the host's tick delta, since the
	// two can differ under FrameSynced/Asynchronous scheduling).
	Tick(v *world.View, dt float64) error
}

// ID uniquely identifies a registered module instance.
type ID = uuid.UUID

// NewID returns a fresh module ID.
func NewID() ID { return uuid.New() }
