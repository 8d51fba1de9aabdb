// Package rawsock provides non-blocking TCP socket primitives for the
// scheduler: a listening socket, an FIONREAD readiness probe ahead of
// every recv (mirroring the original's ioctlsocket(..., FIONREAD, ...)
// check), and single-attempt non-blocking send/recv calls. Platform
// specifics live in rawsock_unix.go (raw unix.Socket with an ioctl probe) and
// rawsock_windows.go (net.Conn with a zero read-deadline fallback).
package rawsock

// Conn is a non-blocking client connection, implementing coro.SocketIO.
type Conn interface {
	ConnID() string
	Probe() (int, error)
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
	// Fd returns the platform file descriptor (or handle-derived int) used
	// by the Controller's readiness multiplexer.
	Fd() int
}

// Listener accepts new non-blocking Conns on a fixed address.
type Listener interface {
	// Accept returns a new Conn if one is ready, (nil, false, nil) if
	// nothing is pending, or an error from the underlying accept(2) call.
	Accept() (Conn, bool, error)
	Fd() int
	Close() error
	Addr() string
}
