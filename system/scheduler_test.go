package system_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/simkernel/kernel/system"
	"github.com/simkernel/kernel/world"
)

type recordingSystem struct {
	name      string
	phase     system.Phase
	dependsOn []string
	fail      bool
	onRun     func()
}

func (r *recordingSystem) Name() string          { return r.name }
func (r *recordingSystem) Phase() system.Phase   { return r.phase }
func (r *recordingSystem) DependsOn() []string   { return r.dependsOn }
func (r *recordingSystem) Run(v *world.View, dt float64) error {
	if r.onRun != nil {
		r.onRun()
	}
	if r.fail {
		return errors.New("system failure")
	}
	return nil
}

func newView() *world.View {
	s := world.NewSchema()
	repo := world.NewRepository(s, 4)
	return world.NewView(repo, world.NewCommandBuffer(), 0, 0)
}

func TestSchedulerRunsPhasesInFixedOrder(t *testing.T) {
	var ran []string
	sched := system.NewScheduler(nil)

	sched.Register(&recordingSystem{name: "export-a", phase: system.Export, onRun: func() { ran = append(ran, "export-a") }})
	sched.Register(&recordingSystem{name: "input-a", phase: system.Input, onRun: func() { ran = append(ran, "input-a") }})
	sched.Register(&recordingSystem{name: "sim-a", phase: system.Simulation, onRun: func() { ran = append(ran, "sim-a") }})

	if err := sched.RunTick(newView(), 0.016); err != nil {
		t.Fatalf("run tick: %v", err)
	}

	want := []string{"input-a", "sim-a", "export-a"}
	if len(ran) != len(want) {
		t.Fatalf("expected %d systems to run, got %d: %v", len(want), len(ran), ran)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Fatalf("expected phase order %v, got %v", want, ran)
		}
	}
}

func TestSchedulerDependencyOrderWithinPhase(t *testing.T) {
	var ran []string
	sched := system.NewScheduler(nil)

	sched.Register(&recordingSystem{name: "c", phase: system.Simulation, dependsOn: []string{"b"}, onRun: func() { ran = append(ran, "c") }})
	sched.Register(&recordingSystem{name: "a", phase: system.Simulation, onRun: func() { ran = append(ran, "a") }})
	sched.Register(&recordingSystem{name: "b", phase: system.Simulation, dependsOn: []string{"a"}, onRun: func() { ran = append(ran, "b") }})

	if err := sched.RunTick(newView(), 0); err != nil {
		t.Fatalf("run tick: %v", err)
	}

	want := []string{"a", "b", "c"}
	for i := range want {
		if ran[i] != want[i] {
			t.Fatalf("expected dependency order %v, got %v", want, ran)
		}
	}
}

func TestSchedulerDeterministicTieBreakByRegistrationOrder(t *testing.T) {
	var ran []string
	sched := system.NewScheduler(nil)
	sched.Register(&recordingSystem{name: "z", phase: system.Simulation, onRun: func() { ran = append(ran, "z") }})
	sched.Register(&recordingSystem{name: "y", phase: system.Simulation, onRun: func() { ran = append(ran, "y") }})
	sched.Register(&recordingSystem{name: "x", phase: system.Simulation, onRun: func() { ran = append(ran, "x") }})

	v := newView()
	if err := sched.RunTick(v, 0); err != nil {
		t.Fatalf("run tick: %v", err)
	}
	firstOrder := append([]string(nil), ran...)

	ran = nil
	if err := sched.Build(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if err := sched.RunTick(v, 0); err != nil {
		t.Fatalf("second run tick: %v", err)
	}

	want := []string{"z", "y", "x"}
	for i := range want {
		if firstOrder[i] != want[i] || ran[i] != want[i] {
			t.Fatalf("expected registration order %v on every build, got %v then %v", want, firstOrder, ran)
		}
	}
}

func TestSchedulerUnknownDependencyFails(t *testing.T) {
	sched := system.NewScheduler(nil)
	sched.Register(&recordingSystem{name: "a", phase: system.Simulation, dependsOn: []string{"ghost"}})

	err := sched.RunTick(newView(), 0)
	if err == nil {
		t.Fatalf("expected unknown dependency to fail Build")
	}
}

func TestSchedulerCircularDependencyFails(t *testing.T) {
	sched := system.NewScheduler(nil)
	sched.Register(&recordingSystem{name: "a", phase: system.Simulation, dependsOn: []string{"b"}})
	sched.Register(&recordingSystem{name: "b", phase: system.Simulation, dependsOn: []string{"a"}})

	err := sched.RunTick(newView(), 0)
	if err == nil {
		t.Fatalf("expected a dependency cycle to fail Build")
	}
	var cycleErr *system.CircularDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CircularDependencyError, got %T: %v", err, err)
	}
}

func TestSchedulerStopsOnFirstSystemError(t *testing.T) {
	var ran []string
	sched := system.NewScheduler(nil)
	sched.Register(&recordingSystem{name: "a", phase: system.Simulation, fail: true, onRun: func() { ran = append(ran, "a") }})
	sched.Register(&recordingSystem{name: "b", phase: system.Simulation, dependsOn: []string{"a"}, onRun: func() { ran = append(ran, "b") }})

	err := sched.RunTick(newView(), 0)
	if err == nil {
		t.Fatalf("expected RunTick to surface the failing system's error")
	}
	if len(ran) != 1 || ran[0] != "a" {
		t.Fatalf("expected only the failing system to run, got %v", ran)
	}
}

func TestProfileRecordsRollingAndLifetimeStats(t *testing.T) {
	sched := system.NewScheduler(nil)
	sched.Register(&recordingSystem{name: "a", phase: system.Simulation})

	for i := 0; i < 3; i++ {
		if err := sched.RunTick(newView(), 0); err != nil {
			t.Fatalf("run tick %d: %v", i, err)
		}
	}

	p, ok := sched.Profile("a")
	if !ok {
		t.Fatalf("expected a profile for system \"a\"")
	}
	if p.Executed() != 3 {
		t.Fatalf("expected 3 executions recorded, got %d", p.Executed())
	}
}

func TestGroupRegistersAllSystems(t *testing.T) {
	var ran []string
	g := system.NewGroup("feature-x")
	g.Add(&recordingSystem{name: "a", phase: system.Input, onRun: func() { ran = append(ran, "a") }})
	g.Add(&recordingSystem{name: "b", phase: system.Simulation, onRun: func() { ran = append(ran, "b") }})

	sched := system.NewScheduler(nil)
	g.RegisterAll(sched)

	if err := sched.RunTick(newView(), 0); err != nil {
		t.Fatalf("run tick: %v", err)
	}
	sort.Strings(ran)
	if len(ran) != 2 || ran[0] != "a" || ran[1] != "b" {
		t.Fatalf("expected both grouped systems to run, got %v", ran)
	}
}
