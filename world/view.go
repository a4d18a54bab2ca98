package world

// View is the read-only handle a system or module body operates through.
// A replica produced by a snapshot provider is itself a *Repository (just
// one populated by a sync instead of CreateEntity/AddComponent calls), so
// View needs no separate data-access surface of its own: generic accessors
// like GetRO/HasComponent/Query already take a *Repository directly and
// work identically whether Repo() returns the live repository or a
// replica. View only adds the two things a live repository doesn't know
// about on its own: which command buffer a caller's mutations should land
// in, and which tick the data was captured at.
type View struct {
	repo *Repository
	cmd  *CommandBuffer
	tick uint64
	time float32
}

// NewView wraps repo (live or replica) as a View at the given tick and
// simulation time, directing recorded mutations into cmd.
func NewView(repo *Repository, cmd *CommandBuffer, tick uint64, simTime float32) *View {
	return &View{repo: repo, cmd: cmd, tick: tick, time: simTime}
}

// Repo returns the underlying repository or replica this view reads from.
func (v *View) Repo() *Repository { return v.repo }

// CommandBuffer returns the buffer this caller should record its
// mutations into.
func (v *View) CommandBuffer() *CommandBuffer { return v.cmd }

// Tick returns the tick number this view's data was captured at.
func (v *View) Tick() uint64 { return v.tick }

// Time returns the accumulated simulation time, in seconds, this view's
// data was captured at.
func (v *View) Time() float32 { return v.time }
