//go:build !windows

package controller

import (
	"net"
	"testing"
	"time"

	"github.com/logiclrd/cotcpsrv/internal/bufpool"
	"github.com/logiclrd/cotcpsrv/internal/coro"
	"github.com/logiclrd/cotcpsrv/internal/rawsock"
)

func TestControllerAcceptsAndRunsHandler(t *testing.T) {
	const addr = "127.0.0.1:18574"

	listener, err := rawsock.Listen(addr)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	runtime := coro.NewRuntime(bufpool.New())
	ctl := New(listener, runtime, nil, func(task *coro.Task) error {
		if _, err := task.Send([]byte("Nickname: ")); err != nil {
			return err
		}
		buf := make([]byte, 1)
		for {
			if _, err := task.Recv(buf); err != nil {
				return nil
			}
		}
	})

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- ctl.Run(stop) }()

	client, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, len("Nickname: "))
	if _, err := readFull(client, buf); err != nil {
		t.Fatalf("expected to receive nickname prompt: %v", err)
	}
	if string(buf) != "Nickname: " {
		t.Fatalf("expected \"Nickname: \", got %q", buf)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctl.ConnectionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ctl.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connected client, got %d", ctl.ConnectionCount())
	}

	client.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctl.ConnectionCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if ctl.ConnectionCount() != 0 {
		t.Fatalf("expected client to be reaped after disconnect, got count %d", ctl.ConnectionCount())
	}

	close(stop)
	listener.Close()
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
