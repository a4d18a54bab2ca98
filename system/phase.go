// Package system implements the phase-ordered, dependency-sorted system
// scheduler that runs inside a host tick: systems are grouped into fixed
// phases, topologically sorted within each phase by their declared
// dependencies, and run in that order every tick with a rolling execution
// profile kept per system.
package system

import "github.com/simkernel/kernel/world"

// Phase is a fixed stage of a tick. Phases always run in the order
// declared below; a system's Phase is static for its lifetime.
type Phase uint8

const (
	// Input applies external input (network, device) accumulated since
	// the previous tick.
	Input Phase = iota
	// BeforeSync runs setup work that later phases depend on having
	// already happened this tick.
	BeforeSync
	// Simulation is the main body of gameplay/simulation logic.
	Simulation
	// PostSimulation reacts to Simulation's output (resolving collisions
	// detected this tick, consuming events Simulation published).
	PostSimulation
	// Export prepares data for modules and external consumers to read
	// next tick (it never mutates gameplay state itself).
	Export
)

// phaseOrder is the fixed run order for every scheduler.
var phaseOrder = [...]Phase{Input, BeforeSync, Simulation, PostSimulation, Export}

func (p Phase) String() string {
	switch p {
	case Input:
		return "input"
	case BeforeSync:
		return "before_sync"
	case Simulation:
		return "simulation"
	case PostSimulation:
		return "post_simulation"
	case Export:
		return "export"
	default:
		return "unknown"
	}
}

// System is one unit of phase-scheduled simulation logic.
type System interface {
	// Name uniquely identifies the system within its phase; DependsOn
	// entries refer to other systems by this name.
	Name() string
	// Phase returns the fixed phase this system runs in.
	Phase() Phase
	// DependsOn lists names of other systems in the same phase that must
	// run before this one this tick.
	DependsOn() []string
	// Run executes the system's logic for one tick.
	Run(v *world.View, dt float64) error
}
