package module

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simkernel/kernel/snapshot"
	"github.com/simkernel/kernel/world"
)

// asyncResult is what an Asynchronous module's background loop hands back
// to the scheduler's owning thread for breaker bookkeeping and playback.
type asyncResult struct {
	err error
	cmd *world.CommandBuffer
}

// registration holds one module's bookkeeping alongside the caller's
// Module implementation.
type registration struct {
	id      ID
	mod     Module
	policy  ExecutionPolicy
	breaker *CircuitBreaker

	cmd     *world.CommandBuffer
	lastRun time.Time

	// period is the number of host ticks between dispatches, derived from
	// policy.TargetHz against the scheduler's HostTickRate. A period of 1
	// dispatches every tick (the default for an unset TargetHz).
	period uint64

	watchComponents []world.ComponentID
	watchEvents     []world.EventID
	// lastDispatchVersion is the repository's CurrentVersion as of this
	// module's last actual dispatch, used to decide whether any watched
	// component or event changed since. everDispatched guards the first
	// invocation, which always runs regardless of watches.
	lastDispatchVersion uint64
	everDispatched      bool

	gdb    *snapshot.GDB
	sod    *snapshot.SoD
	shared *snapshot.Shared

	results        chan asyncResult
	stopBackground context.CancelFunc
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger
	// FailureThreshold and CooldownTicks size every registered module's
	// circuit breaker. 0 selects CircuitBreaker's own defaults.
	FailureThreshold int
	CooldownTicks    uint64
	// HostTickRate is the simulation's own tick rate, used to convert a
	// module's TargetHz into a dispatch period. 60 if unset.
	HostTickRate int
}

// Scheduler dispatches every registered module once per host tick
// according to its ExecutionPolicy, skipping modules whose circuit
// breaker is open.
type Scheduler struct {
	log *slog.Logger

	live *world.Repository

	failureThreshold int
	cooldownTicks    uint64
	hostTickRate     int

	order []ID
	mods  map[ID]*registration
}

// NewScheduler returns a Scheduler dispatching modules against live.
func NewScheduler(live *world.Repository, cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HostTickRate <= 0 {
		cfg.HostTickRate = 60
	}
	return &Scheduler{
		log:              cfg.Logger,
		live:             live,
		failureThreshold: cfg.FailureThreshold,
		cooldownTicks:    cfg.CooldownTicks,
		hostTickRate:     cfg.HostTickRate,
		mods:             make(map[ID]*registration),
	}
}

// period converts targetHz into a tick count between dispatches relative
// to hostTickRate. A targetHz of 0 (or one that would round to less than
// one host tick) dispatches every tick.
func period(hostTickRate int, targetHz int) uint64 {
	if targetHz <= 0 || targetHz >= hostTickRate {
		return 1
	}
	p := uint64(hostTickRate) / uint64(targetHz)
	if p == 0 {
		p = 1
	}
	return p
}

// Register installs mod under a freshly assigned ID, validating its
// policy and provisioning whichever snapshot strategy it declared. An
// Asynchronous module's background loop starts immediately.
func (s *Scheduler) Register(mod Module, chunkCapacity int, filter map[world.ComponentID]bool) (ID, error) {
	policy := mod.Policy()
	if err := policy.Validate(); err != nil {
		return ID{}, err
	}

	reg := &registration{
		id:              NewID(),
		mod:             mod,
		policy:          policy,
		breaker:         NewCircuitBreaker(s.failureThreshold, s.cooldownTicks),
		cmd:             world.NewCommandBuffer(),
		period:          period(s.hostTickRate, policy.TargetHz),
		watchComponents: mod.WatchComponents(),
		watchEvents:     mod.WatchEvents(),
	}

	switch policy.Strategy {
	case GDBAccess:
		reg.gdb = snapshot.NewGDB(s.live.Schema(), chunkCapacity, filter)
	case SoDAccess:
		reg.sod = snapshot.NewSoD(s.live.Schema(), chunkCapacity, 4, filter)
	case SharedAccess:
		reg.shared = snapshot.NewShared(s.live.Schema(), chunkCapacity, filter)
	}

	s.mods[reg.id] = reg
	s.order = append(s.order, reg.id)

	if policy.Mode == Asynchronous {
		ctx, cancel := context.WithCancel(context.Background())
		reg.stopBackground = cancel
		reg.results = make(chan asyncResult, 4)
		go s.runAsyncLoop(ctx, reg)
	}
	return reg.id, nil
}

// Unregister removes a module and stops any background loop it owns.
func (s *Scheduler) Unregister(id ID) {
	reg, ok := s.mods[id]
	if !ok {
		return
	}
	if reg.stopBackground != nil {
		reg.stopBackground()
	}
	delete(s.mods, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// RunTick advances every registered module's persistent snapshot, runs
// every Synchronous module inline and every FrameSynced module fanned out
// concurrently (joined before returning), and drains completed
// Asynchronous results for playback. It must run after the host's system
// scheduler has applied this tick's simulation work and before
// Repository.EndTick.
func (s *Scheduler) RunTick(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range s.order {
		reg := s.mods[id]
		if reg.gdb != nil {
			reg.gdb.Update(s.live)
		}
		switch reg.policy.Mode {
		case Synchronous:
			if s.dueForDispatch(reg) {
				s.runOnce(gctx, reg)
			}
		case FrameSynced:
			reg := reg
			if s.dueForDispatch(reg) {
				g.Go(func() error {
					s.runFrameSynced(gctx, reg)
					return nil
				})
			}
		case Asynchronous:
			s.drainAsync(reg)
		}
	}
	return g.Wait()
}

// dueForDispatch reports whether reg's declared rate and reactive watches
// allow it to run this tick. It must only be called from the scheduler's
// owning thread (Synchronous/FrameSynced dispatch); Asynchronous modules
// pace themselves independently in runAsyncLoop and only consult
// reactiveGate, which is safe from any goroutine.
func (s *Scheduler) dueForDispatch(reg *registration) bool {
	if s.live.CurrentTick()%reg.period != 0 {
		return false
	}
	return s.reactiveGate(reg)
}

// reactiveGate reports whether reg should run given its declared watches:
// true if it has never run, declares no watches, or at least one watched
// component/event changed since its last dispatch. Safe to call from any
// goroutine since it only reads atomic repository counters.
func (s *Scheduler) reactiveGate(reg *registration) bool {
	if !reg.everDispatched {
		return true
	}
	if len(reg.watchComponents) == 0 && len(reg.watchEvents) == 0 {
		return true
	}
	for _, id := range reg.watchComponents {
		if s.live.ComponentChangedSince(id, reg.lastDispatchVersion) {
			return true
		}
	}
	for _, id := range reg.watchEvents {
		if s.live.EventPublishedSince(id, reg.lastDispatchVersion) {
			return true
		}
	}
	return false
}

func (s *Scheduler) recordDispatch(reg *registration) {
	reg.lastDispatchVersion = s.live.CurrentVersion()
	reg.everDispatched = true
}

func (s *Scheduler) acquireReplica(ctx context.Context, reg *registration) (*world.Repository, func(), error) {
	switch reg.policy.Strategy {
	case GDBAccess:
		v := reg.gdb.AcquireView(nil)
		return v.Repo(), func() { reg.gdb.ReleaseView(v) }, nil
	case SoDAccess:
		v, err := reg.sod.AcquireView(ctx, s.live, nil)
		if err != nil {
			return nil, nil, err
		}
		return v.Repo(), func() { reg.sod.ReleaseView(v) }, nil
	case SharedAccess:
		v := reg.shared.AcquireView(s.live, nil)
		return v.Repo(), func() { reg.shared.ReleaseView(v) }, nil
	default:
		return s.live, func() {}, nil
	}
}

func (s *Scheduler) runOnce(ctx context.Context, reg *registration) {
	if !reg.breaker.Allow(s.live.CurrentTick()) {
		return
	}

	v := world.NewView(s.live, reg.cmd, s.live.CurrentTick(), float32(s.live.CurrentTime()))
	dt := s.stepDt(reg)

	if err := reg.mod.Tick(v, dt); err != nil {
		reg.breaker.RecordFailure(s.live.CurrentTick())
		s.log.Error("module tick failed", "module", reg.mod.Name(), "error", err, "breaker_state", reg.breaker.State())
		return
	}
	reg.breaker.RecordSuccess()
	s.recordDispatch(reg)

	if err := reg.cmd.Playback(s.live); err != nil {
		s.log.Error("module command playback failed", "module", reg.mod.Name(), "error", err)
	}
}

func (s *Scheduler) runFrameSynced(ctx context.Context, reg *registration) {
	if !reg.breaker.Allow(s.live.CurrentTick()) {
		return
	}

	repo, release, err := s.acquireReplica(ctx, reg)
	if err != nil {
		s.log.Error("module snapshot acquire failed", "module", reg.mod.Name(), "error", err)
		return
	}
	defer release()

	v := world.NewView(repo, reg.cmd, repo.CurrentTick(), float32(repo.CurrentTime()))
	dt := s.stepDt(reg)

	if err := reg.mod.Tick(v, dt); err != nil {
		reg.breaker.RecordFailure(s.live.CurrentTick())
		s.log.Error("module tick failed", "module", reg.mod.Name(), "error", err, "breaker_state", reg.breaker.State())
		return
	}
	reg.breaker.RecordSuccess()
	s.recordDispatch(reg)

	if err := reg.cmd.Playback(s.live); err != nil {
		s.log.Error("module command playback failed", "module", reg.mod.Name(), "error", err)
	}
}

func (s *Scheduler) stepDt(reg *registration) float64 {
	now := time.Now()
	var dt float64
	if !reg.lastRun.IsZero() {
		dt = now.Sub(reg.lastRun).Seconds()
	}
	reg.lastRun = now
	return dt
}

// runAsyncLoop is an Asynchronous module's entire lifetime: it paces
// itself at its policy's TargetHz (20hz if unset), recording each
// invocation's mutations into a buffer private to that invocation, and
// hands the result to the scheduler's owning thread over reg.results
// rather than touching the live repository or the breaker itself.
func (s *Scheduler) runAsyncLoop(ctx context.Context, reg *registration) {
	hz := reg.policy.TargetHz
	if hz <= 0 {
		hz = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	var lastRun time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.reactiveGate(reg) {
			continue
		}

		repo, release, err := s.acquireReplica(ctx, reg)
		if err != nil {
			continue
		}

		cmd := world.NewCommandBuffer()
		v := world.NewView(repo, cmd, repo.CurrentTick(), float32(repo.CurrentTime()))

		now := time.Now()
		var dt float64
		if !lastRun.IsZero() {
			dt = now.Sub(lastRun).Seconds()
		}
		lastRun = now

		tickErr := reg.mod.Tick(v, dt)
		release()
		s.recordDispatch(reg)

		select {
		case reg.results <- asyncResult{err: tickErr, cmd: cmd}:
		default:
			s.log.Warn("module async result dropped under backpressure", "module", reg.mod.Name())
		}
	}
}

func (s *Scheduler) drainAsync(reg *registration) {
	for {
		select {
		case res := <-reg.results:
			if res.err != nil {
				reg.breaker.RecordFailure(s.live.CurrentTick())
				s.log.Error("module tick failed", "module", reg.mod.Name(), "error", res.err, "breaker_state", reg.breaker.State())
				continue
			}
			reg.breaker.RecordSuccess()
			if err := res.cmd.Playback(s.live); err != nil {
				s.log.Error("module command playback failed", "module", reg.mod.Name(), "error", err)
			}
		default:
			return
		}
	}
}

// BreakerState reports id's current circuit breaker state, for
// diagnostics and tests.
func (s *Scheduler) BreakerState(id ID) (BreakerState, bool) {
	reg, ok := s.mods[id]
	if !ok {
		return Closed, false
	}
	return reg.breaker.State(), true
}
