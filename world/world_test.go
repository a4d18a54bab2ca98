package world_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/simkernel/kernel/world"
)

type Pos struct{ V mgl32.Vec3 }
type Vel struct{ V mgl32.Vec3 }

type Tag struct{ Name string }

func newTestSchema(t *testing.T) (*world.Schema, world.ComponentID, world.ComponentID, world.ComponentID) {
	t.Helper()
	s := world.NewSchema()
	posID, err := world.RegisterComponent[Pos](s, "pos", world.Unmanaged)
	if err != nil {
		t.Fatalf("register Pos: %v", err)
	}
	velID, err := world.RegisterComponent[Vel](s, "vel", world.Unmanaged)
	if err != nil {
		t.Fatalf("register Vel: %v", err)
	}
	tagID, err := world.RegisterComponent[Tag](s, "tag", world.Managed)
	if err != nil {
		t.Fatalf("register Tag: %v", err)
	}
	return s, posID, velID, tagID
}

func TestCreateEntityAndAddComponent(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)

	h := r.CreateEntity()
	if !r.IsAlive(h) {
		t.Fatalf("expected freshly created entity to be alive")
	}

	if err := world.AddComponent(r, h, Pos{V: mgl32.Vec3{1, 2, 3}}); err != nil {
		t.Fatalf("add Pos: %v", err)
	}
	got, err := world.GetRO[Pos](r, h)
	if err != nil {
		t.Fatalf("get Pos: %v", err)
	}
	if got.V != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("expected Pos {1,2,3}, got %v", got.V)
	}
}

func TestSetComponentRequiresExisting(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)
	h := r.CreateEntity()

	err := world.SetComponent(r, h, Pos{V: mgl32.Vec3{9, 9, 9}})
	if err == nil {
		t.Fatalf("expected set on missing component to fail")
	}
	if _, ok := err.(*world.MissingComponentError); !ok {
		t.Fatalf("expected MissingComponentError, got %T: %v", err, err)
	}
}

func TestAddComponentIdempotentOverwrite(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)
	h := r.CreateEntity()

	_ = world.AddComponent(r, h, Pos{V: mgl32.Vec3{1, 0, 0}})
	_ = world.AddComponent(r, h, Pos{V: mgl32.Vec3{2, 0, 0}})

	got, err := world.GetRO[Pos](r, h)
	if err != nil {
		t.Fatalf("get Pos: %v", err)
	}
	if got.V.X() != 2 {
		t.Fatalf("expected second add to overwrite value, got %v", got.V)
	}
}

func TestGetMutMutatesInPlace(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)
	h := r.CreateEntity()
	_ = world.AddComponent(r, h, Vel{V: mgl32.Vec3{1, 1, 1}})

	p, err := world.GetMut[Vel](r, h)
	if err != nil {
		t.Fatalf("get mut Vel: %v", err)
	}
	p.V = p.V.Add(mgl32.Vec3{1, 0, 0})

	got, _ := world.GetRO[Vel](r, h)
	if got.V.X() != 2 {
		t.Fatalf("expected mutation through pointer to be visible, got %v", got.V)
	}
}

func TestDestroyEntityInvalidatesHandle(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)
	h := r.CreateEntity()
	r.DestroyEntity(h)

	if r.IsAlive(h) {
		t.Fatalf("expected destroyed entity to be dead")
	}
	if _, err := world.GetRO[Pos](r, h); err == nil {
		t.Fatalf("expected read of dead entity to fail")
	}

	h2 := r.CreateEntity()
	if h2.Index == h.Index && h2.Generation == h.Generation {
		t.Fatalf("expected reused index to carry a bumped generation")
	}
}

func TestQueryWithWithout(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)

	moving := r.CreateEntity()
	_ = world.AddComponent(r, moving, Pos{})
	_ = world.AddComponent(r, moving, Vel{})

	still := r.CreateEntity()
	_ = world.AddComponent(r, still, Pos{})

	var withVel []world.EntityHandle
	q := world.With[Pos](world.With[Vel](r.Query()))
	q.ForEach(func(h world.EntityHandle) { withVel = append(withVel, h) })
	if len(withVel) != 1 || withVel[0].Index != moving.Index {
		t.Fatalf("expected only the moving entity to match with(Pos,Vel), got %v", withVel)
	}

	var stillOnly []world.EntityHandle
	q2 := world.Without[Vel](world.With[Pos](r.Query()))
	q2.ForEach(func(h world.EntityHandle) { stillOnly = append(stillOnly, h) })
	if len(stillOnly) != 1 || stillOnly[0].Index != still.Index {
		t.Fatalf("expected only the still entity to match with(Pos).without(Vel), got %v", stillOnly)
	}
}

func TestEventBusSwapBuffers(t *testing.T) {
	s := world.NewSchema()
	type Collided struct{ A, B world.EntityHandle }
	if _, err := world.RegisterEvent[Collided](s, "collided"); err != nil {
		t.Fatalf("register event: %v", err)
	}

	bus := world.NewEventBus()
	if err := world.PublishEvent(bus, s, Collided{}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	before, _ := world.ConsumeEvents[Collided](bus, s)
	if len(before) != 0 {
		t.Fatalf("expected nothing visible before swap, got %d", len(before))
	}

	bus.SwapBuffers()
	after, err := world.ConsumeEvents[Collided](bus, s)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("expected 1 event visible after swap, got %d", len(after))
	}

	bus.SwapBuffers()
	gone, _ := world.ConsumeEvents[Collided](bus, s)
	if len(gone) != 0 {
		t.Fatalf("expected consume buffer to clear after a second swap, got %d", len(gone))
	}
}

func TestCommandBufferPlaybackCreatesAndWires(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)

	cmd := world.NewCommandBuffer()
	pending := cmd.CreateEntity()
	world.BufferAddComponent(cmd, pending, Pos{V: mgl32.Vec3{5, 5, 5}})

	if err := cmd.Playback(r); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if r.AliveCount() != 1 {
		t.Fatalf("expected 1 live entity after playback, got %d", r.AliveCount())
	}

	var found world.EntityHandle
	r.Query().ForEach(func(h world.EntityHandle) { found = h })
	got, err := world.GetRO[Pos](r, found)
	if err != nil {
		t.Fatalf("get Pos after playback: %v", err)
	}
	if got.V.Z() != 5 {
		t.Fatalf("expected wired component value, got %v", got.V)
	}
}

func TestCommandBufferSkipsDeadTarget(t *testing.T) {
	s, _, _, _ := newTestSchema(t)
	r := world.NewRepository(s, 4)
	h := r.CreateEntity()
	r.DestroyEntity(h)

	cmd := world.NewCommandBuffer()
	world.BufferAddComponent(cmd, h, Pos{})
	if err := cmd.Playback(r); err != nil {
		t.Fatalf("expected dead target to be silently skipped, got error: %v", err)
	}
}

func TestSingletonRoundTrip(t *testing.T) {
	type Clock struct{ Tick uint64 }
	table := world.NewSingletonTable()

	if _, err := world.GetSingleton[Clock](table); err == nil {
		t.Fatalf("expected missing singleton error before set")
	}
	world.SetSingleton(table, Clock{Tick: 7})
	got, err := world.GetSingleton[Clock](table)
	if err != nil {
		t.Fatalf("get singleton: %v", err)
	}
	if got.Tick != 7 {
		t.Fatalf("expected Tick 7, got %d", got.Tick)
	}
}

func TestSyncFromCopiesEntityAsIndependentValue(t *testing.T) {
	s, posID, _, _ := newTestSchema(t)
	live := world.NewRepository(s, 4)

	h1 := live.CreateEntity()
	_ = world.AddComponent(live, h1, Pos{V: mgl32.Vec3{1, 1, 1}})

	replica := world.NewRepository(s, 4)
	world.RegisterComponentCopy[Pos](replica.Store(), posID)
	replica.SyncFrom(live, nil)

	if !replica.IsAlive(h1) {
		t.Fatalf("expected replica to see entity synced from live")
	}
	got, err := world.GetRO[Pos](replica, h1)
	if err != nil {
		t.Fatalf("get Pos on replica: %v", err)
	}
	if got.V.X() != 1 {
		t.Fatalf("expected synced Pos.X == 1, got %v", got.V)
	}

	// Mutating the replica's copy must never affect the live repository:
	// RegisterComponentCopy must have produced an independent value.
	mut, _ := world.GetMut[Pos](replica, h1)
	mut.V = mgl32.Vec3{100, 100, 100}
	liveGot, _ := world.GetRO[Pos](live, h1)
	if liveGot.V.X() == 100 {
		t.Fatalf("expected live repository to be unaffected by replica mutation")
	}
}
