//go:build !windows

// Controller's event loop is built on unix.Poll, which has no portable
// analog; a Windows build would need an IOCP-based turn instead of a
// poll-based one, which is out of scope here (rawsock_windows.go's
// net.Conn fallback remains as groundwork for that).
package controller

import (
	"context"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/logiclrd/cotcpsrv/internal/coro"
	"github.com/logiclrd/cotcpsrv/internal/hooks"
	"github.com/logiclrd/cotcpsrv/internal/logger"
	"github.com/logiclrd/cotcpsrv/internal/rawsock"
)

// Handler is invoked once per accepted connection to run the chat
// protocol against the newly spawned Task.
type Handler func(t *coro.Task) error

// Controller is the single-threaded event loop: it polls every live
// Task's socket for readiness, dispatches readable Tasks, performs one
// write per writable Task, and reaps finished Tasks each turn. Mirrors
// tcp_server_loop.
type Controller struct {
	listener rawsock.Listener
	runtime  *coro.Runtime
	reg      *registry
	hookMgr  *hooks.HookManager
	handler  Handler
	log      *slog.Logger

	tasks map[string]*coro.Task

	stopped bool
}

// New creates a Controller bound to listener, using runtime to spawn and
// dispatch Tasks. handler is the chat protocol entry point run inside
// every accepted connection's Task.
func New(listener rawsock.Listener, runtime *coro.Runtime, hookMgr *hooks.HookManager, handler Handler) *Controller {
	return &Controller{
		listener: listener,
		runtime:  runtime,
		reg:      newRegistry(),
		hookMgr:  hookMgr,
		handler:  handler,
		log:      logger.Logger().With("component", "controller"),
		tasks:    make(map[string]*coro.Task),
	}
}

// ConnectionCount returns the number of currently connected Tasks.
func (c *Controller) ConnectionCount() int { return c.reg.count() }

// Run drives the event loop until stop is closed or a fatal error
// occurs (a failure of unix.Poll itself; individual accept/recv/send
// failures never stop the loop).
func (c *Controller) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := c.turn(); err != nil {
			return err
		}
	}
}

// turn runs one pass of the event loop: build the poll set, poll, accept,
// dispatch readable/writable Tasks, then reap finished ones.
func (c *Controller) turn() error {
	snapshot := c.reg.snapshot()

	fds := make([]unix.PollFd, 0, len(snapshot)+1)
	fds = append(fds, unix.PollFd{Fd: int32(c.listener.Fd()), Events: unix.POLLIN})

	taskByFd := make(map[int]*coro.Task, len(snapshot))
	for _, th := range snapshot {
		task := c.tasks[th.ConnID()]
		if task == nil {
			continue
		}
		taskByFd[task.Fd()] = task

		var events int16
		if !task.InSend() {
			events |= unix.POLLIN
		}
		if task.WantWrite() {
			events |= unix.POLLOUT
		}
		if events != 0 {
			fds = append(fds, unix.PollFd{Fd: int32(task.Fd()), Events: events})
		}
	}

	n, err := unix.Poll(fds, -1)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	if n == 0 {
		// matches the original's defensive "wtf?" comment: a zero-count
		// return with no timeout should not happen, but is not fatal.
		return nil
	}

	listenerFd := fds[0]
	if listenerFd.Revents&unix.POLLIN != 0 {
		c.acceptOne()
	}

	for _, pfd := range fds[1:] {
		task := taskByFd[int(pfd.Fd)]
		if task == nil {
			continue
		}
		if pfd.Revents&unix.POLLIN != 0 {
			c.runtime.Dispatch(task)
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			task.WriteToSocket()
		}
	}

	c.sweepInSendTasks(snapshot)
	c.reapFinished(snapshot)

	return nil
}

// acceptOne accepts at most one pending connection per turn and spawns a
// Task for it, mirroring co_call_add(tcp_client_loop, new_client).
func (c *Controller) acceptOne() {
	conn, ok, err := c.listener.Accept()
	if err != nil {
		c.log.Warn("accept failed", "error", err)
		return
	}
	if !ok {
		return
	}

	task := c.runtime.Spawn(conn, func(t *coro.Task) error {
		return c.handler(t)
	})
	c.reg.add(task)
	c.tasks[task.ConnID()] = task

	if c.hookMgr != nil {
		c.hookMgr.TriggerEvent(context.Background(), *hooks.NewEvent(hooks.EventConnectionAccept).WithConnID(task.ConnID()))
	}

	c.runtime.Dispatch(task)
}

// sweepInSendTasks dispatches every Task that is blocked in Send whose
// write queue has drained or errored, mirroring the original's second
// reverse sweep.
func (c *Controller) sweepInSendTasks(snapshot []taskHandle) {
	for _, th := range snapshot {
		task := c.tasks[th.ConnID()]
		if task == nil {
			continue
		}
		if task.InSend() && !task.WantWrite() {
			c.runtime.Dispatch(task)
		}
	}
}

// reapFinished removes and closes every Task that has finished this turn,
// mirroring co_finish + co_delete_context.
func (c *Controller) reapFinished(snapshot []taskHandle) {
	for _, th := range snapshot {
		task := c.tasks[th.ConnID()]
		if task == nil || !task.Finished() {
			continue
		}

		if err := c.reg.remove(task); err != nil {
			c.log.Warn("failed to remove finished task from registry", "conn_id", task.ConnID(), "error", err)
		}
		delete(c.tasks, task.ConnID())
		task.CloseSocket()

		if c.hookMgr != nil {
			c.hookMgr.TriggerEvent(context.Background(), *hooks.NewEvent(hooks.EventConnectionClose).WithConnID(task.ConnID()).WithNick(task.Nick))
		}
	}
}
