package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestIsSchedulerErrorClassification(t *testing.T) {
	root := stdErrors.New("root")
	wrapped := fmt.Errorf("adding context: %w", root)

	be := NewBindError("listener.bind", wrapped)
	if !IsSchedulerError(be) {
		t.Fatalf("expected IsSchedulerError=true for bind error")
	}
	if !stdErrors.Is(be, root) {
		t.Fatalf("expected errors.Is to find root cause")
	}
	var typed *BindError
	if !stdErrors.As(be, &typed) {
		t.Fatalf("expected errors.As to *BindError")
	}
	if typed.Op != "listener.bind" {
		t.Fatalf("unexpected op: %s", typed.Op)
	}

	ae := NewAcceptError("controller.accept", nil)
	if !IsSchedulerError(ae) {
		t.Fatalf("expected accept error classified as scheduler error")
	}
	se := NewSendError("task.send", nil)
	if !IsSchedulerError(se) {
		t.Fatalf("expected send error classified as scheduler error")
	}
	re := NewRecvError("task.recv", nil)
	if !IsSchedulerError(re) {
		t.Fatalf("expected recv error classified as scheduler error")
	}
}

func TestIsFatal(t *testing.T) {
	be := NewBindError("listener.listen", stdErrors.New("address in use"))
	if !IsFatal(be) {
		t.Fatalf("expected BindError to be fatal")
	}
	ae := NewAcceptError("controller.accept", stdErrors.New("too many open files"))
	if IsFatal(ae) {
		t.Fatalf("accept error should not be fatal")
	}
	se := NewSendError("task.send", stdErrors.New("broken pipe"))
	if IsFatal(se) {
		t.Fatalf("send error should not be fatal")
	}
}

func TestIsTaskStateError(t *testing.T) {
	join := NewTaskStateError("registry.join", ErrTaskUnfinished)
	if !IsTaskStateError(join) {
		t.Fatalf("expected join-on-unfinished recognized as TaskStateError")
	}
	if !stdErrors.Is(join, ErrTaskUnfinished) {
		t.Fatalf("expected errors.Is to find ErrTaskUnfinished")
	}
	del := NewTaskStateError("registry.delete", ErrTaskNotFound)
	if !IsTaskStateError(del) {
		t.Fatalf("expected delete-on-unknown recognized as TaskStateError")
	}
	if !stdErrors.Is(del, ErrTaskNotFound) {
		t.Fatalf("expected errors.Is to find ErrTaskNotFound")
	}
	if IsTaskStateError(NewSendError("task.send", nil)) {
		t.Fatalf("send error misclassified as task state error")
	}
}

func TestUnwrapChains(t *testing.T) {
	base := stdErrors.New("connection reset by peer")
	l1 := fmt.Errorf("write: %w", base)
	l2 := NewSendError("task.send", l1)
	if !stdErrors.Is(l2, base) {
		t.Fatalf("errors.Is should reach base cause")
	}
	var sm schedulerMarker
	if !stdErrors.As(l2, &sm) {
		t.Fatalf("expected to match schedulerMarker via As")
	}
}

func TestNilSafety(t *testing.T) {
	if IsSchedulerError(nil) {
		t.Fatalf("nil should not be a scheduler error")
	}
	if IsFatal(nil) {
		t.Fatalf("nil should not be fatal")
	}
	if IsTaskStateError(nil) {
		t.Fatalf("nil should not be a task state error")
	}
}

func TestConstructorWithoutCause(t *testing.T) {
	re := NewRecvError("task.recv", nil)
	if re == nil {
		t.Fatalf("constructor returned nil")
	}
	if errStr := re.Error(); errStr == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestNilErrBranchesAndStrings(t *testing.T) {
	be := NewBindError("listener.bind", nil)
	if s := be.Error(); s == "" || s == "bind error:" {
		t.Fatalf("unexpected bind error string: %q", s)
	}
	ae := NewAcceptError("controller.accept", nil)
	if s := ae.Error(); s == "" {
		t.Fatalf("empty accept error string")
	}
	se := NewSendError("task.send", nil)
	if s := se.Error(); s == "" {
		t.Fatalf("empty send error string")
	}
	re := NewRecvError("task.recv", nil)
	if s := re.Error(); s == "" {
		t.Fatalf("empty recv error string")
	}
	tse := NewTaskStateError("registry.join", nil)
	if s := tse.Error(); s == "" {
		t.Fatalf("empty task state error string")
	}
}

func TestNegativePredicates(t *testing.T) {
	if IsSchedulerError(stdErrors.New("plain")) {
		t.Fatalf("plain error shouldn't be a scheduler error")
	}
	if IsFatal(stdErrors.New("plain")) {
		t.Fatalf("plain error shouldn't be fatal")
	}
	if IsTaskStateError(stdErrors.New("plain")) {
		t.Fatalf("plain error shouldn't be a task state error")
	}
}
