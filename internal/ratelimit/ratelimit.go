// Package ratelimit provides per-connection inbound line throttling. It
// is flood protection only: it never changes co_recv's return contract,
// it only delays how soon the line reader's next suspension point is
// allowed to proceed once bytes are already available.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces how many lines per second a single Task's line reader
// may accept.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a Limiter allowing linesPerSecond lines on average, with
// burst allowing an initial burst of up to burst lines before throttling
// kicks in.
func New(linesPerSecond float64, burst int) *Limiter {
	if linesPerSecond <= 0 {
		linesPerSecond = rate.Inf.Limit()
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{lim: rate.NewLimiter(rate.Limit(linesPerSecond), burst)}
}

// Unlimited returns a Limiter that never throttles, used when no
// rate-limit budget is configured.
func Unlimited() *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Inf, 1)}
}

// Wait blocks until a reservation for one line is available, or ctx is
// done. It must only be called at a line boundary (before beginning the
// next line read), never mid-line: bytes already received are always
// drained regardless of budget.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Reserve immediately consumes one line's budget without blocking. Used
// by the cooperative line reader, which cannot natively await a
// time.Timer without leaving the single-goroutine-at-a-time model: it
// polls the delay via the Task's own yield loop instead of calling Wait
// directly. See waitForLineBudget in package chatproto.
func (l *Limiter) Reserve() time.Duration {
	r := l.lim.Reserve()
	if !r.OK() {
		return 0
	}
	return r.Delay()
}
