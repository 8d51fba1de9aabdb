// Package errors defines the typed error kinds the scheduler and
// controller distinguish, per the error handling table in SPEC_FULL.md §7.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// schedulerMarker is implemented by all scheduler-layer error types so
// callers can classify them with IsSchedulerError without a type switch.
type schedulerMarker interface {
	error
	isScheduler()
}

// BindError indicates the listening socket could not be created, bound, or
// put into listen mode. Fatal: main exits non-zero without ever entering
// the event loop.
type BindError struct {
	Op  string
	Err error
}

func (e *BindError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bind error: %s", e.Op)
	}
	return fmt.Sprintf("bind error: %s: %v", e.Op, e.Err)
}
func (e *BindError) Unwrap() error { return e.Err }
func (e *BindError) isScheduler()  {}

// AcceptError wraps a failed accept(2) call. Non-fatal: the Controller
// logs it and continues the event loop on the next turn.
type AcceptError struct {
	Op  string
	Err error
}

func (e *AcceptError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("accept error: %s", e.Op)
	}
	return fmt.Sprintf("accept error: %s: %v", e.Op, e.Err)
}
func (e *AcceptError) Unwrap() error { return e.Err }
func (e *AcceptError) isScheduler()  {}

// SendError records the OS error from a failed write on a client socket.
// Stored as a Task's last-write error and surfaced to the Task's next
// co_send call; it tears down only that one Task, never the Controller.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("send error: %s", e.Op)
	}
	return fmt.Sprintf("send error: %s: %v", e.Op, e.Err)
}
func (e *SendError) Unwrap() error { return e.Err }
func (e *SendError) isScheduler()  {}

// RecvError wraps a recv that returned ≤0 bytes after a positive
// readiness probe, or a failure of the readiness probe itself. Returned
// from co_recv, which the chat handler treats as end-of-connection.
type RecvError struct {
	Op  string
	Err error
}

func (e *RecvError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recv error: %s", e.Op)
	}
	return fmt.Sprintf("recv error: %s: %v", e.Op, e.Err)
}
func (e *RecvError) Unwrap() error { return e.Err }
func (e *RecvError) isScheduler()  {}

// TaskStateError indicates a programmer error: removing a Task from the
// registry before it has finished, or an operation targeting a Task the
// registry does not (or no longer) know about. Never tears anything down
// by itself.
type TaskStateError struct {
	Op  string
	Err error
}

func (e *TaskStateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("task state error: %s", e.Op)
	}
	return fmt.Sprintf("task state error: %s: %v", e.Op, e.Err)
}
func (e *TaskStateError) Unwrap() error { return e.Err }
func (e *TaskStateError) isScheduler()  {}

// ErrTaskUnfinished is wrapped by a TaskStateError when the registry is
// asked to remove a task that has not yet finished.
var ErrTaskUnfinished = stdErrors.New("task has not finished")

// ErrTaskNotFound is wrapped by a TaskStateError when an operation
// targets a task no longer present in the registry.
var ErrTaskNotFound = stdErrors.New("task not found")

// NewBindError constructs a BindError, optionally wrapping a cause.
func NewBindError(op string, cause error) error { return &BindError{Op: op, Err: cause} }

// NewAcceptError constructs an AcceptError, optionally wrapping a cause.
func NewAcceptError(op string, cause error) error { return &AcceptError{Op: op, Err: cause} }

// NewSendError constructs a SendError, optionally wrapping a cause.
func NewSendError(op string, cause error) error { return &SendError{Op: op, Err: cause} }

// NewRecvError constructs a RecvError, optionally wrapping a cause.
func NewRecvError(op string, cause error) error { return &RecvError{Op: op, Err: cause} }

// NewTaskStateError constructs a TaskStateError, optionally wrapping a cause.
func NewTaskStateError(op string, cause error) error { return &TaskStateError{Op: op, Err: cause} }

// IsSchedulerError reports whether err is, or wraps, one of the typed
// errors in this package.
func IsSchedulerError(err error) bool {
	if err == nil {
		return false
	}
	var sm schedulerMarker
	return stdErrors.As(err, &sm)
}

// IsFatal reports whether err should terminate the process rather than
// merely tear down a single Task or log-and-continue.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var be *BindError
	return stdErrors.As(err, &be)
}

// IsTaskStateError reports whether err is a TaskStateError (removal of an
// unfinished task, or an operation on an unknown task).
func IsTaskStateError(err error) bool {
	if err == nil {
		return false
	}
	var tse *TaskStateError
	return stdErrors.As(err, &tse)
}
