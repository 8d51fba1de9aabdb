//go:build windows

package rawsock

import (
	"fmt"
	"io"
	"net"
	"time"

	chatrelayerrors "github.com/logiclrd/cotcpsrv/internal/errors"
)

// windowsConn wraps a net.Conn, simulating non-blocking reads/writes with
// a zero read-deadline: a Read that would block instead returns
// immediately with a timeout error, which Probe/Read below treat as "zero
// bytes available right now" rather than a hard failure.
type windowsConn struct {
	conn    net.Conn
	connID  string
	pending []byte
}

func (c *windowsConn) ConnID() string { return c.connID }
func (c *windowsConn) Fd() int        { return 0 }

func (c *windowsConn) Probe() (int, error) {
	c.conn.SetReadDeadline(time.Now())
	var probe [1]byte
	n, err := c.conn.Read(probe[:])
	c.conn.SetReadDeadline(time.Time{})

	if n > 0 {
		c.pending = append(c.pending, probe[:n]...)
	}
	if err != nil {
		if isTimeout(err) {
			return len(c.pending), nil
		}
		if err == io.EOF {
			return len(c.pending), nil
		}
		return 0, err
	}
	return len(c.pending), nil
}

func (c *windowsConn) Read(buf []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(buf, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	c.conn.SetReadDeadline(time.Now())
	n, err := c.conn.Read(buf)
	c.conn.SetReadDeadline(time.Time{})
	if err != nil && isTimeout(err) {
		return 0, nil
	}
	return n, err
}

func (c *windowsConn) Write(buf []byte) (int, error) {
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Millisecond))
	n, err := c.conn.Write(buf)
	c.conn.SetWriteDeadline(time.Time{})
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (c *windowsConn) Close() error { return c.conn.Close() }

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// windowsListener wraps a net.Listener.
type windowsListener struct {
	ln     net.Listener
	addr   string
	nextID uint64
}

// Listen creates a TCP listener on addr. Backlog and SO_REUSEADDR are
// left to the platform's net package defaults, since Windows does not
// expose the same socket options as POSIX.
func Listen(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, chatrelayerrors.NewBindError("listen", err)
	}
	return &windowsListener{ln: ln, addr: addr}, nil
}

func (l *windowsListener) Fd() int      { return 0 }
func (l *windowsListener) Addr() string { return l.addr }
func (l *windowsListener) Close() error { return l.ln.Close() }

func (l *windowsListener) Accept() (Conn, bool, error) {
	type deadlineListener interface {
		SetDeadline(time.Time) error
	}
	if dl, ok := l.ln.(deadlineListener); ok {
		dl.SetDeadline(time.Now())
	}

	conn, err := l.ln.Accept()

	if dl, ok := l.ln.(deadlineListener); ok {
		dl.SetDeadline(time.Time{})
	}

	if err != nil {
		if isTimeout(err) {
			return nil, false, nil
		}
		return nil, false, chatrelayerrors.NewAcceptError("accept", err)
	}

	l.nextID++
	return &windowsConn{conn: conn, connID: fmt.Sprintf("conn-%d", l.nextID)}, true, nil
}
