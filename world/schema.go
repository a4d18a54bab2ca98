package world

import (
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ComponentID is the stable small integer a component type is assigned on
// registration. IDs are dense starting at zero in registration order and
// double as bit positions in an Archetype mask, so a Schema supports at
// most 64 distinct component types.
type ComponentID int8

// EventID is the stable small integer an event type is assigned on
// registration, analogous to ComponentID but kept in its own namespace.
type EventID int8

// ComponentKind distinguishes the two component storage strategies: dense
// value columns versus a reference table of immutable values.
type ComponentKind uint8

const (
	// Unmanaged components are fixed-size, trivially copyable values
	// stored densely in the chunked column store.
	Unmanaged ComponentKind = iota
	// Managed components are immutable reference values stored in the
	// parallel managed-component table. Callers must never mutate a
	// managed value in place after publishing it; managed values are
	// copied across threads by reference, which is only safe under
	// that immutability invariant.
	Managed
)

type componentInfo struct {
	id   ComponentID
	name string
	kind ComponentKind
	typ  reflect.Type
}

type eventInfo struct {
	id   EventID
	name string
	typ  reflect.Type
}

// Schema holds the ordered registration of component and event types for
// one repository. It is registered into exactly once per type (duplicate
// registration is fatal at setup) and is shared by reference, never
// copied, across a live repository and its replicas: replicas never own
// the schema.
type Schema struct {
	mu sync.RWMutex

	components []componentInfo
	compByName map[string]ComponentID
	compByType map[reflect.Type]ComponentID

	events    []eventInfo
	evByName  map[string]EventID
	evByType  map[reflect.Type]EventID
	nextEvent EventID
}

// NewSchema returns an empty Schema.
func NewSchema() *Schema {
	return &Schema{
		compByName: make(map[string]ComponentID),
		compByType: make(map[reflect.Type]ComponentID),
		evByName:   make(map[string]EventID),
		evByType:   make(map[reflect.Type]EventID),
	}
}

// RegisterComponent registers T under name with the given storage kind,
// returning its newly assigned ComponentID. Registering the same name or
// the same Go type twice returns a *DuplicateRegistrationError.
func RegisterComponent[T any](s *Schema, name string, kind ComponentKind) (ComponentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.compByName[name]; ok {
		return 0, &DuplicateRegistrationError{Name: name}
	}
	typ := reflect.TypeFor[T]()
	if _, ok := s.compByType[typ]; ok {
		return 0, &DuplicateRegistrationError{Name: name}
	}
	if len(s.components) >= 64 {
		return 0, &DuplicateRegistrationError{Name: name, Reason: "component schema is full (max 64 types)"}
	}
	id := ComponentID(len(s.components))
	s.components = append(s.components, componentInfo{id: id, name: name, kind: kind, typ: typ})
	s.compByName[name] = id
	s.compByType[typ] = id
	return id, nil
}

// ComponentIDFor returns the ID registered for T, if any.
func ComponentIDFor[T any](s *Schema) (ComponentID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.compByType[reflect.TypeFor[T]()]
	return id, ok
}

// ComponentKindOf returns the storage kind registered for id.
func (s *Schema) ComponentKindOf(id ComponentID) (ComponentKind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.components) {
		return 0, false
	}
	return s.components[id].kind, true
}

// ComponentName returns the registered name for id.
func (s *Schema) ComponentName(id ComponentID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(s.components) {
		return "", false
	}
	return s.components[id].name, true
}

// RegisterEvent registers T as an event type under name, returning its
// newly assigned EventID.
func RegisterEvent[T any](s *Schema, name string) (EventID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.evByName[name]; ok {
		return 0, &DuplicateRegistrationError{Name: name}
	}
	typ := reflect.TypeFor[T]()
	if _, ok := s.evByType[typ]; ok {
		return 0, &DuplicateRegistrationError{Name: name}
	}
	id := s.nextEvent
	s.nextEvent++
	s.events = append(s.events, eventInfo{id: id, name: name, typ: typ})
	s.evByName[name] = id
	s.evByType[typ] = id
	return id, nil
}

// EventIDFor returns the ID registered for T, if any.
func EventIDFor[T any](s *Schema) (EventID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.evByType[reflect.TypeFor[T]()]
	return id, ok
}

// Fingerprint hashes the registered component and event names (in
// registration order, which is deterministic across repositories built by
// the same setup code) into a single value. Two repositories meant to
// exchange snapshots should assert equal fingerprints before a SyncFrom.
func (s *Schema) Fingerprint() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.components)+len(s.events))
	for _, c := range s.components {
		names = append(names, c.name)
	}
	for _, e := range s.events {
		names = append(names, e.name)
	}

	h := xxhash.New()
	for _, n := range names {
		_, _ = h.WriteString(n)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// ComponentCount returns the number of registered component types.
func (s *Schema) ComponentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.components)
}

// EventCount returns the number of registered event types.
func (s *Schema) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
