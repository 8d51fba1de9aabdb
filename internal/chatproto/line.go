// Package chatproto implements the chat wire protocol against a
// coro.Task: the nickname prompt, the byte-at-a-time line reader, and
// the broadcast loop. Grounded on tcp_client_loop/read_line/broadcast.
package chatproto

import (
	"time"

	"github.com/logiclrd/cotcpsrv/internal/coro"
)

const (
	// backspace rewinds the write index by one.
	backspace = 0x08
	// lf is the trailing line feed of a CRLF pair already split across
	// reads; a lone leading one is discarded.
	lf = 0x0A
	// cr terminates a line.
	cr = 0x0D
)

// readLine reads up to maxChars bytes one at a time from t, applying the
// backspace/CRLF rules, and returns the accumulated line with its
// terminator stripped. Mirrors read_line. If the underlying Recv fails it
// returns an empty string and that error, discarding whatever was read so
// far (the caller tears the connection down either way).
func readLine(t *coro.Task, maxChars int) (string, error) {
	buf := make([]byte, maxChars)
	one := make([]byte, 1)

	i := 0
	for ; i < maxChars; i++ {
		if _, err := t.Recv(one); err != nil {
			return "", err
		}
		b := one[0]

		if b == lf && i == 0 {
			i--
			continue
		}

		if b == backspace {
			i -= 2
			if i < -1 {
				i = -1
			}
			continue
		}

		buf[i] = b

		if b == cr {
			i++
			break
		}
	}

	if i == 0 {
		return "", nil
	}
	return string(buf[:i-1]), nil
}

// waitForLineBudget blocks the Task, via cooperative yields rather than a
// real sleep, until the rate limiter's reservation for the next line is
// due. Using Yield (not time.Sleep) keeps the Controller free to service
// every other connection while this one waits out its throttle delay.
func waitForLineBudget(t *coro.Task, delay time.Duration) {
	if delay <= 0 {
		return
	}
	deadline := time.Now().Add(delay)
	for time.Now().Before(deadline) {
		t.Yield()
	}
}
