// Package coro implements the cooperative scheduler: one goroutine per
// connection (a Task), synchronized with the Controller through a strict
// two-channel rendezvous so that at most one goroutine is ever doing
// scheduler-visible work at a time. This is the Go realization of the
// original fiber/pth-based co_context coroutines.
package coro

import (
	"errors"

	"github.com/logiclrd/cotcpsrv/internal/bufpool"
	chatrelayerrors "github.com/logiclrd/cotcpsrv/internal/errors"
	"github.com/logiclrd/cotcpsrv/internal/payload"
)

// SocketIO is the minimal non-blocking socket capability a Task needs.
// Implementations live in package rawsock.
type SocketIO interface {
	ConnID() string
	// Probe returns the number of bytes currently readable without
	// blocking (the FIONREAD probe), or an error if the probe failed.
	Probe() (int, error)
	// Read performs a single non-blocking read into buf.
	Read(buf []byte) (int, error)
	// Write performs a single non-blocking write attempt of buf.
	Write(buf []byte) (int, error)
	Close() error
	// Fd returns the platform descriptor used by the Controller's
	// readiness multiplexer.
	Fd() int
}

// EntryPoint is the function a Task runs once started, analogous to the
// original's co_entrypoint_type.
type EntryPoint func(t *Task) error

// exitSignal unwinds Task.run back to its recover point, the Go
// equivalent of the original's longjmp-based co_exit.
type exitSignal struct{ err error }

// Task is one connection's independent, suspendable execution context.
type Task struct {
	id    string
	io    SocketIO
	entry EntryPoint
	pool  *bufpool.Pool

	resume chan struct{}
	parked chan struct{}

	started  bool
	finished bool
	exitErr  error

	writeQueue payload.WriteQueue
	writeErr   error
	inSend     bool

	// Nick is the connection's nickname, set by the chat protocol once it
	// has been read; nothing in this package reads it.
	Nick string
}

// ConnID returns the identifier of the underlying connection.
func (t *Task) ConnID() string { return t.id }

// Fd returns the underlying connection's platform descriptor, used by the
// Controller's readiness multiplexer.
func (t *Task) Fd() int { return t.io.Fd() }

// WriteToSocket attempts a single non-blocking write of the front write
// queue entry, matching the original's "only one 'send' is performed per
// call to select" rule. A failed write records the error, wrapped in a
// SendError, for the Task's next Send call instead of returning it.
func (t *Task) WriteToSocket() {
	pending := t.writeQueue.Pending()
	if pending == nil {
		return
	}
	n, err := t.io.Write(pending)
	if err != nil {
		t.writeErr = chatrelayerrors.NewSendError("write", err)
		return
	}
	t.writeQueue.Advance(n)
}

// CloseSocket closes the underlying connection.
func (t *Task) CloseSocket() error { return t.io.Close() }

// Finished reports whether the Task's entry point has returned or exited.
func (t *Task) Finished() bool { return t.finished }

// ExitErr returns the error the Task's entry point returned (or exited
// with), valid only once Finished() is true.
func (t *Task) ExitErr() error { return t.exitErr }

// InSend reports whether the Task is currently blocked inside Send
// waiting for its write queue to drain — the Controller uses this to
// avoid selecting the socket for read (matching the original's "prevent
// busy waiting" comment).
func (t *Task) InSend() bool { return t.inSend }

// WantWrite reports whether the Controller should poll this Task's
// socket for writability: there is queued data and no unresolved error.
func (t *Task) WantWrite() bool {
	return !t.writeQueue.Empty() && t.writeErr == nil
}

// PendingWrite returns the unwritten bytes of the front of the write
// queue, or nil if nothing is queued.
func (t *Task) PendingWrite() []byte { return t.writeQueue.Pending() }

// AdvanceWrite records that n bytes were flushed to the socket.
func (t *Task) AdvanceWrite(n int) { t.writeQueue.Advance(n) }

// SetWriteError records a failed send, surfaced to the Task's next Send
// call and matching the original's write_buffer_error_code.
func (t *Task) SetWriteError(err error) { t.writeErr = err }

// Exit unwinds the Task's entry point immediately with err, equivalent
// to the original's co_exit / longjmp.
func (t *Task) Exit(err error) {
	panic(exitSignal{err: err})
}

// Yield suspends the Task and hands control back to whichever Dispatch
// call is currently running it, resuming only once the Controller
// Dispatches this Task again. This is the task-side half of the
// rendezvous; it requires no reference to the Controller because the
// Controller is always the one blocked reading t.parked.
func (t *Task) Yield() {
	t.parked <- struct{}{}
	<-t.resume
}

// Enqueue appends data to the Task's write queue without yielding,
// satisfying relay.Sink. Unlike Send, the caller is a different Task (or
// the Controller) performing fan-out delivery during its own turn, so it
// must not block waiting for this Task's queue to drain — draining
// happens when the Controller finds this Task's socket writable and
// calls WriteToSocket.
func (t *Task) Enqueue(data []byte) error {
	if t.finished {
		return chatrelayerrors.NewSendError("enqueue", errors.New("task finished"))
	}
	if len(data) == 0 {
		return nil
	}
	block := payload.NewBlock(t.pool, data)
	t.writeQueue.Enqueue(block)
	return nil
}

// Send enqueues data onto the Task's own write queue (as a new payload
// Block) and, if anything remains queued, yields until the Controller has
// drained it. Mirrors co_send.
func (t *Task) Send(data []byte) (int, error) {
	if len(data) > 0 {
		block := payload.NewBlock(t.pool, data)
		t.writeQueue.Enqueue(block)
	}

	if !t.writeQueue.Empty() {
		t.inSend = true
		t.Yield()
		t.inSend = false
	}

	if t.writeErr != nil {
		err := t.writeErr
		t.writeErr = nil
		return 0, err
	}

	return len(data), nil
}

// Recv fills buf with exactly len(buf) bytes, probing readability before
// every read and yielding to the Controller whenever nothing is
// available yet. Mirrors co_recv.
func (t *Task) Recv(buf []byte) (int, error) {
	total := 0
	for len(buf) > 0 {
		n, err := t.io.Probe()
		if err != nil {
			return total, chatrelayerrors.NewRecvError("probe", err)
		}

		if n == 0 {
			t.Yield()
			continue
		}

		if n > len(buf) {
			n = len(buf)
		}

		read, err := t.io.Read(buf[:n])
		if err != nil {
			return total, chatrelayerrors.NewRecvError("read", err)
		}
		if read <= 0 {
			return total, chatrelayerrors.NewRecvError("read", errors.New("connection closed"))
		}

		buf = buf[read:]
		total += read
	}

	return total, nil
}

// run is the Task's goroutine body: prime, wait for the real first
// dispatch, execute the entry point, then report finished.
func (t *Task) run() {
	<-t.resume // priming dispatch
	t.started = true
	t.parked <- struct{}{}

	<-t.resume // real first dispatch

	func() {
		defer func() {
			if r := recover(); r != nil {
				if es, ok := r.(exitSignal); ok {
					t.exitErr = es.err
					return
				}
				panic(r)
			}
		}()
		t.exitErr = t.entry(t)
	}()

	t.writeQueue.Drain()
	t.finished = true
	t.parked <- struct{}{}
}
