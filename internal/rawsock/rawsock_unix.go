//go:build !windows

package rawsock

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	chatrelayerrors "github.com/logiclrd/cotcpsrv/internal/errors"
)

// unixConn is a non-blocking raw-fd TCP connection.
type unixConn struct {
	fd     int
	connID string
	peer   string
}

func (c *unixConn) ConnID() string { return c.connID }
func (c *unixConn) Fd() int        { return c.fd }

// Probe performs the FIONREAD ioctl probe the original source uses ahead
// of every recv, returning the number of bytes currently readable
// without blocking.
func (c *unixConn) Probe() (int, error) {
	n, err := unix.IoctlGetInt(c.fd, unix.FIONREAD)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *unixConn) Read(buf []byte) (int, error) {
	n, err := unix.Read(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *unixConn) Write(buf []byte) (int, error) {
	n, err := unix.Write(c.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}

func (c *unixConn) Close() error {
	return unix.Close(c.fd)
}

// unixListener is a non-blocking raw-fd TCP listening socket.
type unixListener struct {
	fd     int
	addr   string
	nextID uint64
}

// Listen creates, binds and listens on addr (host:port, host may be
// empty for INADDR_ANY) with SO_REUSEADDR and a backlog of 5, matching
// the original tcp_server_loop exactly.
func Listen(addr string) (Listener, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return nil, chatrelayerrors.NewBindError("listener.parse_addr", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, chatrelayerrors.NewBindError("listener.parse_port", err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, chatrelayerrors.NewBindError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, chatrelayerrors.NewBindError("setsockopt.SO_REUSEADDR", err)
	}

	var ip [4]byte
	if host != "" {
		parsed := parseIPv4(host)
		ip = parsed
	}

	sa := &unix.SockaddrInet4{Port: port, Addr: ip}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, chatrelayerrors.NewBindError("bind", err)
	}

	if err := unix.Listen(fd, 5); err != nil {
		unix.Close(fd)
		return nil, chatrelayerrors.NewBindError("listen", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, chatrelayerrors.NewBindError("set_nonblock", err)
	}

	return &unixListener{fd: fd, addr: addr}, nil
}

func (l *unixListener) Fd() int      { return l.fd }
func (l *unixListener) Addr() string { return l.addr }
func (l *unixListener) Close() error { return unix.Close(l.fd) }

func (l *unixListener) Accept() (Conn, bool, error) {
	nfd, sa, err := unix.Accept(l.fd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, chatrelayerrors.NewAcceptError("accept", err)
	}

	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, false, chatrelayerrors.NewAcceptError("set_nonblock", err)
	}

	l.nextID++
	peer := "unknown"
	if sa4, ok := sa.(*unix.SockaddrInet4); ok {
		peer = fmt.Sprintf("%d.%d.%d.%d:%d", sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3], sa4.Port)
	}

	connID := fmt.Sprintf("conn-%d", l.nextID)
	return &unixConn{fd: nfd, connID: connID, peer: peer}, true, nil
}

func splitHostPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("invalid address %q: missing port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

func parseIPv4(host string) [4]byte {
	var out [4]byte
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return out
	}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > 255 {
			return [4]byte{}
		}
		out[i] = byte(v)
	}
	return out
}
