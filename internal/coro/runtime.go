package coro

import "github.com/logiclrd/cotcpsrv/internal/bufpool"

// Runtime is the single mutable scheduler state threaded explicitly
// through the Controller: which Task (if any) is presently executing.
// There is exactly one Runtime per process; it is never a package-level
// global.
type Runtime struct {
	current *Task
	pool    *bufpool.Pool
}

// NewRuntime creates a Runtime backed by pool for payload Block
// allocation. A nil pool falls back to plain allocation per Block.
func NewRuntime(pool *bufpool.Pool) *Runtime {
	return &Runtime{pool: pool}
}

// Current returns the Task presently being dispatched, or nil if the
// Controller itself is running.
func (rt *Runtime) Current() *Task { return rt.current }

// Spawn creates a new Task bound to io and primes it: the Task's
// goroutine runs up to the point where it reports itself started and
// parks, mirroring co_delay_call. The Task does not begin executing
// entry until the caller Dispatches it.
func (rt *Runtime) Spawn(io SocketIO, entry EntryPoint) *Task {
	t := &Task{
		id:     io.ConnID(),
		io:     io,
		entry:  entry,
		pool:   rt.pool,
		resume: make(chan struct{}),
		parked: make(chan struct{}),
	}

	go t.run()

	prev := rt.current
	rt.current = t
	t.resume <- struct{}{} // priming dispatch
	<-t.parked
	rt.current = prev

	return t
}

// Dispatch resumes t and blocks until t suspends again (via Yield) or
// finishes. This is the Controller-side half of the rendezvous.
func (rt *Runtime) Dispatch(t *Task) {
	if rt.current == t {
		return
	}

	prev := rt.current
	rt.current = t
	t.resume <- struct{}{}
	<-t.parked
	rt.current = prev
}
