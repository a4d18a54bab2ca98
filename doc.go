// Package kernel hosts a tick-driven entity/component simulation: a
// world.Repository holding entities and their components, a
// system.Scheduler running phase-ordered systems against it every tick,
// a module.Scheduler dispatching independently scheduled modules against
// snapshots of it, and a lifecycle.Coordinator tracking multi-participant
// construction and destruction rounds.
package kernel
