package chatproto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/logiclrd/cotcpsrv/internal/coro"
	"github.com/logiclrd/cotcpsrv/internal/relay"
)

// fakeIO is a minimal in-memory coro.SocketIO for protocol-level tests.
// Once its inbox is drained it reports the connection closed, mirroring
// a peer that sends its scripted lines and then disconnects.
type fakeIO struct {
	id      string
	inbox   []byte
	written []byte
	closed  bool
	// stayOpen, when true, reports an idle-but-connected socket (Probe
	// returns 0, nil) once the scripted inbox is drained instead of
	// reporting the connection closed.
	stayOpen bool
}

func (f *fakeIO) ConnID() string { return f.id }
func (f *fakeIO) Fd() int        { return -1 }
func (f *fakeIO) Probe() (int, error) {
	if len(f.inbox) == 0 {
		if f.stayOpen {
			return 0, nil
		}
		return 0, errors.New("connection closed")
	}
	return len(f.inbox), nil
}
func (f *fakeIO) Read(buf []byte) (int, error) {
	n := copy(buf, f.inbox)
	f.inbox = f.inbox[n:]
	return n, nil
}
func (f *fakeIO) Write(buf []byte) (int, error) {
	f.written = append(f.written, buf...)
	return len(buf), nil
}
func (f *fakeIO) Close() error { f.closed = true; return nil }

func drainAll(rt *coro.Runtime, t *coro.Task, io *fakeIO, maxTurns int) {
	for i := 0; i < maxTurns && !t.Finished(); i++ {
		t.WriteToSocket()
		rt.Dispatch(t)
	}
	t.WriteToSocket()
}

func TestReadLineAppliesBackspaceAndCRLFRules(t *testing.T) {
	rt := coro.NewRuntime(nil)
	io := &fakeIO{id: "c1", inbox: []byte("bob\b\bX\r\n")}

	result := make(chan string, 1)
	task := rt.Spawn(io, func(task *coro.Task) error {
		line, err := readLine(task, 20)
		if err != nil {
			return err
		}
		result <- line
		return nil
	})

	drainAll(rt, task, io, 10)

	select {
	case got := <-result:
		if got != "bX" {
			t.Fatalf("expected \"bX\", got %q", got)
		}
	default:
		t.Fatalf("readLine did not complete")
	}
}

func TestHandleSingleClientSuppressesSelfBroadcast(t *testing.T) {
	rt := coro.NewRuntime(nil)
	io := &fakeIO{id: "c1", inbox: []byte("alice\r\nhi\r\n")}

	fanout := relay.NewFanoutManager(nil)
	var stdout bytes.Buffer
	proto := NewProtocol(fanout, nil, &stdout)

	task := rt.Spawn(io, proto.Handle)
	drainAll(rt, task, io, 50)

	if !task.Finished() {
		t.Fatalf("expected handler to finish once input is exhausted")
	}
	if !strings.Contains(stdout.String(), "<alice> hi\r\n") {
		t.Fatalf("expected stdout echo of broadcast line, got %q", stdout.String())
	}
	if !strings.HasPrefix(string(io.written), nicknamePrompt) {
		t.Fatalf("expected nickname prompt written to client, got %q", io.written)
	}
	if strings.Contains(string(io.written[len(nicknamePrompt):]), "hi") {
		t.Fatalf("sender should not receive its own broadcast, got %q", io.written)
	}
}

func TestHandleRejectsReservedNicknameSilently(t *testing.T) {
	rt := coro.NewRuntime(nil)
	io := &fakeIO{id: "c1", inbox: []byte("admin\r\n")}

	fanout := relay.NewFanoutManager(nil)
	proto := NewProtocol(fanout, nil, nil)
	proto.IsReserved = func(nick string) bool { return nick == "admin" }

	task := rt.Spawn(io, proto.Handle)
	drainAll(rt, task, io, 10)

	if !task.Finished() {
		t.Fatalf("expected handler to finish after reserved nickname teardown")
	}
	if fanout.Count() != 0 {
		t.Fatalf("reserved nickname must never be registered as a fan-out destination")
	}
	if string(io.written) != nicknamePrompt {
		t.Fatalf("reserved nickname must receive no bytes beyond the prompt, got %q", io.written)
	}
}

func TestTwoClientRelay(t *testing.T) {
	rt := coro.NewRuntime(nil)
	fanout := relay.NewFanoutManager(nil)
	var stdout bytes.Buffer
	proto := NewProtocol(fanout, nil, &stdout)

	ioA := &fakeIO{id: "a", inbox: []byte("a\r\n"), stayOpen: true}
	taskA := rt.Spawn(ioA, proto.Handle)
	drainAll(rt, taskA, ioA, 10)

	ioB := &fakeIO{id: "b", inbox: []byte("b\r\nhello\r\n")}
	taskB := rt.Spawn(ioB, proto.Handle)
	drainAll(rt, taskB, ioB, 50)

	if !taskB.Finished() {
		t.Fatalf("expected B's handler to finish")
	}
	taskA.WriteToSocket()
	if !strings.Contains(string(ioA.written), "<b> hello\r\n") {
		t.Fatalf("expected A to receive B's broadcast, got %q", ioA.written)
	}
}
