//go:build !windows

package rawsock

import (
	"net"
	"testing"
	"time"
)

func TestListenAcceptRoundTrip(t *testing.T) {
	const addr = "127.0.0.1:18573"

	ln, err := Listen(addr)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	time.Sleep(20 * time.Millisecond)

	var conn Conn
	for i := 0; i < 20 && conn == nil; i++ {
		c, ok, err := ln.Accept()
		if err != nil {
			t.Fatalf("Accept: %v", err)
		}
		if ok {
			conn = c
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if conn == nil {
		t.Fatalf("expected a pending connection to accept")
	}
	defer conn.Close()

	if _, err := client.Write([]byte("hi")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	n, err := conn.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 readable bytes, got %d", n)
	}
}

func TestUnixConnProbeNonBlocking(t *testing.T) {
	srvLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer srvLn.Close()

	addr := srvLn.Addr().(*net.TCPAddr)

	client, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	accepted, err := srvLn.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer accepted.Close()

	rawFile, err := accepted.(*net.TCPConn).File()
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	defer rawFile.Close()

	conn := &unixConn{fd: int(rawFile.Fd()), connID: "c1"}

	n, err := conn.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 readable bytes before any write, got %d", n)
	}

	if _, err := client.Write([]byte("hi")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	n, err = conn.Probe()
	if err != nil {
		t.Fatalf("Probe after write: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 readable bytes, got %d", n)
	}

	buf := make([]byte, 2)
	read, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if read != 2 || string(buf) != "hi" {
		t.Fatalf("unexpected read result: n=%d buf=%q", read, buf)
	}
}
