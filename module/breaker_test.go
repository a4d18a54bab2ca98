package module_test

import (
	"testing"

	"github.com/simkernel/kernel/module"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := module.NewCircuitBreaker(3, 10)

	for i := 0; i < 2; i++ {
		b.RecordFailure(uint64(i))
		if b.State() != module.Closed {
			t.Fatalf("expected breaker to stay closed after %d failures, got %s", i+1, b.State())
		}
	}
	b.RecordFailure(2)
	if b.State() != module.Open {
		t.Fatalf("expected breaker to open at threshold, got %s", b.State())
	}
	if b.Allow(5) {
		t.Fatalf("expected breaker to deny ticks before cooldown elapses")
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	b := module.NewCircuitBreaker(1, 10)
	b.RecordFailure(0)
	if b.State() != module.Open {
		t.Fatalf("expected open after single failure at threshold 1, got %s", b.State())
	}

	if b.Allow(9) {
		t.Fatalf("expected deny before cooldown (tick 9 < opened 0 + cooldown 10)")
	}
	if !b.Allow(10) {
		t.Fatalf("expected one probe allowed once cooldown elapses")
	}
	if b.State() != module.HalfOpen {
		t.Fatalf("expected half_open after cooldown probe, got %s", b.State())
	}
	if b.Allow(10) {
		t.Fatalf("expected only one probe per half-open window")
	}

	b.RecordSuccess()
	if b.State() != module.Closed {
		t.Fatalf("expected closed after a successful probe, got %s", b.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	b := module.NewCircuitBreaker(1, 10)
	b.RecordFailure(0)
	b.Allow(10) // enters half-open, consumes the probe

	b.RecordFailure(10)
	if b.State() != module.Open {
		t.Fatalf("expected a failed probe to reopen the breaker, got %s", b.State())
	}
}
