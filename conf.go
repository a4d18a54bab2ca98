package kernel

import (
	"log/slog"
	"time"

	"github.com/simkernel/kernel/config"
	"github.com/simkernel/kernel/world"
)

// Config contains options for starting a Kernel.
type Config struct {
	// Log is the Logger used for kernel diagnostics. If nil, Log is set
	// to slog.Default().
	Log *slog.Logger
	// Schema holds every component and event type the hosted simulation
	// will use. It must be fully registered before calling New: a Kernel
	// never mutates the schema it is given.
	Schema *world.Schema
	// TickRate is the number of ticks per second Run aims for. Defaults
	// to 60 if zero.
	TickRate int
	// ChunkCapacity is the row capacity of the repository's chunks and of
	// every replica a snapshot provider builds from it. Defaults to
	// chunk.DefaultCapacity if zero.
	ChunkCapacity int
	// ModuleFailureThreshold and ModuleCooldownTicks size every
	// registered module's circuit breaker. 0 selects the module
	// package's own defaults.
	ModuleFailureThreshold int
	ModuleCooldownTicks    uint64
	// LifecycleTimeoutFrames bounds how long a construction/destruction
	// round waits for every participant's acknowledgement before it is
	// abandoned. Defaults to 300 (5 seconds at 60 ticks/sec) if zero.
	LifecycleTimeoutFrames uint64
}

func (conf Config) withDefaults() (Config, error) {
	if conf.Schema == nil {
		return conf, &SchemaRequiredError{}
	}
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.TickRate <= 0 {
		conf.TickRate = 60
	}
	if conf.ChunkCapacity <= 0 {
		conf.ChunkCapacity = 1024
	}
	if conf.LifecycleTimeoutFrames == 0 {
		conf.LifecycleTimeoutFrames = 300
	}
	return conf, nil
}

func (conf Config) tickInterval() time.Duration {
	return time.Second / time.Duration(conf.TickRate)
}

// FromUserConfig builds a Config from a TOML-loaded UserConfig, a schema,
// and a logger. schema must already have every component and event type
// registered.
func FromUserConfig(uc config.UserConfig, schema *world.Schema, log *slog.Logger) Config {
	return Config{
		Log:                    log,
		Schema:                 schema,
		TickRate:               uc.Host.TickRate,
		ChunkCapacity:          uc.Host.ChunkCapacity,
		ModuleFailureThreshold: uc.Module.FailureThreshold,
		ModuleCooldownTicks:    uc.Module.CooldownTicks,
		LifecycleTimeoutFrames: uc.Lifecycle.TimeoutFrames,
	}
}
