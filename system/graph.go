package system

import "fmt"

// CircularDependencyError reports a dependency cycle found while sorting
// one phase's systems.
type CircularDependencyError struct {
	Phase Phase
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("system: circular dependency in phase %s: %v", e.Phase, e.Cycle)
}

// UnknownDependencyError reports a DependsOn entry naming a system that
// was never registered in the same phase.
type UnknownDependencyError struct {
	Phase      Phase
	System     string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("system: %s in phase %s depends on unregistered system %s", e.System, e.Phase, e.Dependency)
}

// topoSort orders systems within a single phase by Kahn's algorithm,
// breaking ties by registration order so two builds from the same
// registration sequence always produce the same order.
func topoSort(phase Phase, systems []System) ([]System, error) {
	byName := make(map[string]System, len(systems))
	indexOf := make(map[string]int, len(systems))
	for i, sys := range systems {
		byName[sys.Name()] = sys
		indexOf[sys.Name()] = i
	}

	inDegree := make(map[string]int, len(systems))
	dependents := make(map[string][]string, len(systems))
	for _, sys := range systems {
		inDegree[sys.Name()] = 0
	}
	for _, sys := range systems {
		for _, dep := range sys.DependsOn() {
			if _, ok := byName[dep]; !ok {
				return nil, &UnknownDependencyError{Phase: phase, System: sys.Name(), Dependency: dep}
			}
			dependents[dep] = append(dependents[dep], sys.Name())
			inDegree[sys.Name()]++
		}
	}

	var ready []string
	for _, sys := range systems {
		if inDegree[sys.Name()] == 0 {
			ready = append(ready, sys.Name())
		}
	}

	var order []System
	for len(ready) > 0 {
		// Pick the ready system with the lowest original registration
		// index, so ties resolve deterministically.
		bestPos := 0
		for i := 1; i < len(ready); i++ {
			if indexOf[ready[i]] < indexOf[ready[bestPos]] {
				bestPos = i
			}
		}
		name := ready[bestPos]
		ready = append(ready[:bestPos], ready[bestPos+1:]...)

		order = append(order, byName[name])
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(systems) {
		var cycle []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		return nil, &CircularDependencyError{Phase: phase, Cycle: cycle}
	}
	return order, nil
}
