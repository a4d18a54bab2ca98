package kernel

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simkernel/kernel/lifecycle"
	"github.com/simkernel/kernel/module"
	"github.com/simkernel/kernel/system"
	"github.com/simkernel/kernel/world"
)

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 0.9 // fraction of configured tick rate
)

// Kernel hosts one simulation's repository, its phase-ordered systems, its
// independently scheduled modules, and its lifecycle coordinator, driving
// all of them forward one tick at a time.
type Kernel struct {
	conf Config

	repo       *world.Repository
	systems    *system.Scheduler
	modules    *module.Scheduler
	lifecycle  *lifecycle.Coordinator

	tps atomic.Uint64

	closing  chan struct{}
	closed   sync.Once
	running  sync.WaitGroup
}

// New returns a Kernel built from conf. An error is returned if conf is
// missing a required field.
func New(conf Config) (*Kernel, error) {
	conf, err := conf.withDefaults()
	if err != nil {
		return nil, err
	}

	repo := world.NewRepository(conf.Schema, conf.ChunkCapacity)
	k := &Kernel{
		conf:      conf,
		repo:      repo,
		systems:   system.NewScheduler(conf.Log),
		lifecycle: lifecycle.NewCoordinator(conf.Log),
		closing:   make(chan struct{}),
	}
	k.modules = module.NewScheduler(repo, module.SchedulerConfig{
		Logger:           conf.Log,
		FailureThreshold: conf.ModuleFailureThreshold,
		CooldownTicks:    conf.ModuleCooldownTicks,
		HostTickRate:     conf.TickRate,
	})
	return k, nil
}

// Repository returns the kernel's live entity/component repository.
func (k *Kernel) Repository() *world.Repository { return k.repo }

// Systems returns the kernel's phase-ordered system scheduler, for
// registering systems before the first tick.
func (k *Kernel) Systems() *system.Scheduler { return k.systems }

// Modules returns the kernel's module scheduler, for registering modules
// before the first tick.
func (k *Kernel) Modules() *module.Scheduler { return k.modules }

// Lifecycle returns the kernel's construction/destruction coordinator.
func (k *Kernel) Lifecycle() *lifecycle.Coordinator { return k.lifecycle }

// BeginLifecycle starts a construction or destruction round on entity
// using the kernel's configured timeout, recording the resulting
// set_lifecycle_state and order-event commands into cmd. Callers normally
// pass a View's own CommandBuffer so the round's commands land alongside
// the caller's other writes at the same point in the tick.
func (k *Kernel) BeginLifecycle(cmd *world.CommandBuffer, entity world.EntityHandle, kind lifecycle.Kind, typeID lifecycle.TypeID, participants []lifecycle.ParticipantID) lifecycle.OperationID {
	return k.lifecycle.Begin(cmd, entity, kind, typeID, participants, k.repo.CurrentTick(), k.conf.LifecycleTimeoutFrames)
}

// TPS returns the kernel's measured ticks-per-second over its most recent
// sampling window.
func (k *Kernel) TPS() float64 {
	return math.Float64frombits(k.tps.Load())
}

// Tick runs one full tick: phase-ordered systems against the live
// repository, then every registered module against its declared snapshot
// strategy, then lifecycle timeout checks, then the repository's
// end-of-tick bookkeeping (dirty flag clear, event buffer swap, tick
// counter advance).
func (k *Kernel) Tick(ctx context.Context, dt float64) error {
	view := world.NewView(k.repo, world.NewCommandBuffer(), k.repo.CurrentTick(), float32(k.repo.CurrentTime()))
	if err := k.systems.RunTick(view, dt); err != nil {
		return err
	}
	if cmd := view.CommandBuffer(); cmd.Len() > 0 {
		if err := cmd.Playback(k.repo); err != nil {
			return err
		}
	}
	if err := k.modules.RunTick(ctx); err != nil {
		k.conf.Log.Error("module scheduler tick failed", "error", err)
	}

	timeoutCmd := world.NewCommandBuffer()
	if timeouts := k.lifecycle.CheckTimeouts(timeoutCmd, k.repo.CurrentTick()); len(timeouts) > 0 {
		for _, t := range timeouts {
			k.conf.Log.Warn("lifecycle round timed out", "op", t.Op, "kind", t.Kind, "entity", t.Entity, "missing", len(t.Missing))
		}
	}
	if timeoutCmd.Len() > 0 {
		if err := timeoutCmd.Playback(k.repo); err != nil {
			return err
		}
	}

	k.repo.AdvanceTime(dt)
	k.repo.EndTick()
	return nil
}

// Run ticks the kernel at conf.TickRate until ctx is cancelled or Close is
// called, sampling a rolling TPS measurement every tpsSampleSize ticks.
func (k *Kernel) Run(ctx context.Context) error {
	k.running.Add(1)
	defer k.running.Done()

	ticker := time.NewTicker(k.conf.tickInterval())
	defer ticker.Stop()

	lastTick := time.Now()
	var durationSum time.Duration
	var ticksCount int
	warned := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-k.closing:
			return nil
		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			if dt > 0 {
				durationSum += dt
				ticksCount++
				if ticksCount >= tpsSampleSize {
					avg := durationSum / time.Duration(ticksCount)
					if avg > 0 {
						tps := 1.0 / avg.Seconds()
						k.tps.Store(math.Float64bits(tps))
						threshold := float64(k.conf.TickRate) * tpsWarningThreshold
						if tps < threshold {
							if !warned {
								k.conf.Log.Warn("tick rate dropped below threshold", "tps", tps, "target", k.conf.TickRate)
								warned = true
							}
						} else {
							warned = false
						}
					}
					durationSum = 0
					ticksCount = 0
				}
			}
			if err := k.Tick(ctx, dt.Seconds()); err != nil {
				k.conf.Log.Error("tick failed", "error", err)
			}
		}
	}
}

// Close stops a running Run loop. It is safe to call more than once and
// from any goroutine.
func (k *Kernel) Close() {
	k.closed.Do(func() { close(k.closing) })
	k.running.Wait()
}
