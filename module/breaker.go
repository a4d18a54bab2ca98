package module

// BreakerState is the circuit breaker's current disposition toward its
// module.
type BreakerState uint8

const (
	// Closed lets every tick through.
	Closed BreakerState = iota
	// Open skips every tick until the cooldown elapses.
	Open
	// HalfOpen lets exactly one probe tick through to decide whether to
	// return to Closed or back to Open.
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker takes a module offline after a run of consecutive tick
// failures, rather than letting a persistently broken module stall the
// scheduler or spam the log every tick, and periodically lets it prove
// itself recovered. It tracks state for exactly one (repository, module)
// pair; a module hosted against two repositories gets an independent
// breaker for each.
type CircuitBreaker struct {
	failureThreshold int
	cooldownTicks    uint64

	state             BreakerState
	consecutiveFails  int
	openedAtTick      uint64
	halfOpenProbeSent bool
}

// NewCircuitBreaker returns a Closed breaker that opens after
// failureThreshold consecutive failures and waits cooldownTicks before
// its next half-open probe.
func NewCircuitBreaker(failureThreshold int, cooldownTicks uint64) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldownTicks == 0 {
		cooldownTicks = 60
	}
	return &CircuitBreaker{failureThreshold: failureThreshold, cooldownTicks: cooldownTicks}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState { return b.state }

// Allow reports whether the module should run this tick, transitioning
// Open to HalfOpen once the cooldown has elapsed.
func (b *CircuitBreaker) Allow(currentTick uint64) bool {
	switch b.state {
	case Closed:
		return true
	case Open:
		if currentTick-b.openedAtTick >= b.cooldownTicks {
			b.state = HalfOpen
			b.halfOpenProbeSent = true
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenProbeSent {
			return false
		}
		b.halfOpenProbeSent = true
		return true
	default:
		return false
	}
}

// RecordSuccess clears the failure streak and closes the breaker.
func (b *CircuitBreaker) RecordSuccess() {
	b.consecutiveFails = 0
	b.state = Closed
}

// RecordFailure registers one failed tick. currentTick lets the breaker
// start its cooldown window from the moment it actually opens.
func (b *CircuitBreaker) RecordFailure(currentTick uint64) {
	if b.state == HalfOpen {
		b.state = Open
		b.openedAtTick = currentTick
		return
	}
	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = Open
		b.openedAtTick = currentTick
	}
}
