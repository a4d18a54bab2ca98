package system

import (
	"log/slog"
	"time"

	"github.com/simkernel/kernel/world"
)

// Scheduler runs every registered system once per tick, in phase order,
// topologically sorted by dependency within each phase, recording a
// rolling execution profile for each.
type Scheduler struct {
	log *slog.Logger

	byPhase map[Phase][]System
	order   map[Phase][]System
	built   bool

	profiles map[string]*Profile
}

// NewScheduler returns an empty Scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		log:      logger,
		byPhase:  make(map[Phase][]System),
		profiles: make(map[string]*Profile),
	}
}

// Register adds sys to its declared phase. A Register call after Build
// marks the sorted order stale, so the next RunTick rebuilds it.
func (s *Scheduler) Register(sys System) {
	s.byPhase[sys.Phase()] = append(s.byPhase[sys.Phase()], sys)
	s.profiles[sys.Name()] = &Profile{}
	s.built = false
}

// Build topologically sorts every phase's systems. It must be called
// before the first RunTick, and again after any Register call made after
// an earlier Build.
func (s *Scheduler) Build() error {
	order := make(map[Phase][]System, len(s.byPhase))
	for phase, systems := range s.byPhase {
		sorted, err := topoSort(phase, systems)
		if err != nil {
			return err
		}
		order[phase] = sorted
	}
	s.order = order
	s.built = true
	return nil
}

// RunTick runs every system in phase order. It rebuilds the sort
// automatically if Register was called since the last Build.
func (s *Scheduler) RunTick(v *world.View, dt float64) error {
	if !s.built {
		if err := s.Build(); err != nil {
			return err
		}
	}
	for _, phase := range phaseOrder {
		for _, sys := range s.order[phase] {
			start := time.Now()
			err := sys.Run(v, dt)
			s.profiles[sys.Name()].record(time.Since(start))
			if err != nil {
				s.log.Error("system run failed", "system", sys.Name(), "phase", phase, "error", err)
				return err
			}
		}
	}
	return nil
}

// Profile returns the rolling execution profile for a registered system
// name, if any.
func (s *Scheduler) Profile(name string) (*Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}
