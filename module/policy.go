package module

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// ClampHz constrains a module's desired invocation rate to the range the
// scheduler supports, so a module built from a configuration value out of
// that range still ends up with a well-formed policy instead of failing
// Validate.
func ClampHz[T constraints.Integer](hz T) T {
	switch {
	case hz < 0:
		return 0
	case hz > 60:
		return 60
	default:
		return hz
	}
}

// ExecutionMode controls when and on what thread a module's Tick runs.
type ExecutionMode uint8

const (
	// Synchronous runs Tick inline on the host's tick thread, at most once
	// per host tick (every tick unless TargetHz sets a longer period),
	// with a Direct view over the live repository.
	Synchronous ExecutionMode = iota
	// FrameSynced runs Tick on a dedicated goroutine, but the host's
	// tick loop waits for it to finish before EndTick, so it always sees
	// exactly the current tick's data.
	FrameSynced
	// Asynchronous runs Tick on a dedicated goroutine at its own target
	// rate, decoupled from the host tick: it may skip ticks or run
	// multiple times per host tick depending on TargetHz.
	Asynchronous
)

func (m ExecutionMode) String() string {
	switch m {
	case Synchronous:
		return "synchronous"
	case FrameSynced:
		return "frame_synced"
	case Asynchronous:
		return "asynchronous"
	default:
		return "unknown"
	}
}

// AccessStrategy controls how a module observes the repository.
type AccessStrategy uint8

const (
	// Direct reads the live repository itself; only valid for
	// Synchronous modules, since it requires running on the owning
	// thread.
	Direct AccessStrategy = iota
	// GDBAccess reads through a persistent double-buffered replica.
	GDBAccess
	// SoDAccess reads through an on-demand pooled replica.
	SoDAccess
	// SharedAccess reads through a refcounted shared replica.
	SharedAccess
)

func (a AccessStrategy) String() string {
	switch a {
	case Direct:
		return "direct"
	case GDBAccess:
		return "gdb"
	case SoDAccess:
		return "sod"
	case SharedAccess:
		return "shared"
	default:
		return "unknown"
	}
}

// ExecutionPolicy declares how a module wants to run and observe data.
type ExecutionPolicy struct {
	Mode     ExecutionMode
	Strategy AccessStrategy
	// TargetHz is the module's desired invocation rate. For Synchronous
	// and FrameSynced modules 0 means every host tick. Asynchronous
	// modules use it to pace their own loop, at 20 Hz when it is 0.
	// Must be in [0, 60].
	TargetHz int
}

// Validate checks the policy's internal consistency, per the constraints
// on mode/strategy/rate combinations a Scheduler is built to support.
func (p ExecutionPolicy) Validate() error {
	if p.TargetHz < 0 || p.TargetHz > 60 {
		return fmt.Errorf("module: target_hz %d out of range [0, 60]", p.TargetHz)
	}
	switch p.Mode {
	case Synchronous:
		if p.Strategy != Direct {
			return fmt.Errorf("module: synchronous modules must use direct access, got %s", p.Strategy)
		}
	case FrameSynced, Asynchronous:
		if p.Strategy == Direct {
			return fmt.Errorf("module: %s modules cannot use direct access", p.Mode)
		}
	default:
		return fmt.Errorf("module: unknown execution mode %d", p.Mode)
	}
	return nil
}
