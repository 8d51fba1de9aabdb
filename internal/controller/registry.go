// Package controller implements the Controller: the single-threaded
// event loop that multiplexes every connection's socket with unix.Poll,
// dispatches ready Tasks, drains one write per ready write socket, and
// reaps finished Tasks, mirroring the original's tcp_server_loop.
package controller

import (
	"sync"

	chatrelayerrors "github.com/logiclrd/cotcpsrv/internal/errors"
)

// taskHandle is the subset of *coro.Task the registry and Controller need,
// expressed as an interface so this package does not import coro for
// anything beyond what it actually calls.
type taskHandle interface {
	ConnID() string
	Finished() bool
}

// registry tracks the set of live Tasks by connection id, the Go
// equivalent of the original's dynamically-growing contexts array. A
// map keyed by connection id plays the same role as the array plus its
// linear "find by socket" scan, without needing one.
type registry struct {
	mu    sync.RWMutex
	tasks map[string]taskHandle
}

func newRegistry() *registry {
	return &registry{tasks: make(map[string]taskHandle)}
}

// add registers t. Mirrors co_add_context.
func (r *registry) add(t taskHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ConnID()] = t
}

// remove deletes a finished task from the registry. Mirrors
// co_delete_context: removing an unknown or unfinished task is a
// programmer error, reported as a TaskStateError rather than silently
// ignored.
func (r *registry) remove(t taskHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[t.ConnID()]
	if !ok {
		return chatrelayerrors.NewTaskStateError("registry.remove", chatrelayerrors.ErrTaskNotFound)
	}
	if !existing.Finished() {
		return chatrelayerrors.NewTaskStateError("registry.remove", chatrelayerrors.ErrTaskUnfinished)
	}

	delete(r.tasks, t.ConnID())
	return nil
}

// snapshot returns a stable slice of currently registered tasks for one
// Controller turn. Iteration order does not matter for correctness (the
// original's reverse-iteration was only there to cope with in-place
// array compaction during deletion); a map naturally avoids that hazard.
func (r *registry) snapshot() []taskHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]taskHandle, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out
}

// count returns the number of live tasks.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
