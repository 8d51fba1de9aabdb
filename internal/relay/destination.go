package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sink is the minimal capability a fan-out destination needs: enqueueing a
// broadcast line onto a Task's write queue. Implemented by *coro.Task.
type Sink interface {
	Enqueue(data []byte) error
	ConnID() string
}

// DestinationStatus represents the delivery state of a fan-out destination.
type DestinationStatus int

const (
	StatusConnected DestinationStatus = iota
	StatusClosed
)

// String returns a string representation of the destination status.
func (s DestinationStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DestinationMetrics tracks fan-out delivery for a single connected Task.
// Read-only observability; it never gates correctness (SPEC_FULL.md §3).
type DestinationMetrics struct {
	MessagesSent    uint64
	MessagesDropped uint64
	BytesSent       uint64
	LastActivity    time.Time
}

// Destination wraps one connected Task as a broadcast fan-out target.
type Destination struct {
	ConnID string
	sink   Sink

	mu      sync.RWMutex
	status  DestinationStatus
	metrics DestinationMetrics
	logger  *slog.Logger
}

// NewDestination wraps sink as a fan-out destination.
func NewDestination(sink Sink, logger *slog.Logger) *Destination {
	if logger == nil {
		logger = slog.Default()
	}
	return &Destination{
		ConnID: sink.ConnID(),
		sink:   sink,
		status: StatusConnected,
		logger: logger.With("conn_id", sink.ConnID()),
	}
}

// Deliver enqueues data onto the destination's write queue and updates
// delivery metrics. A send failure marks the destination closed; the
// Task's own Controller turn is what actually tears the connection down,
// this only stops counting it as a live fan-out target.
func (d *Destination) Deliver(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status != StatusConnected {
		d.metrics.MessagesDropped++
		return fmt.Errorf("destination %s not connected", d.ConnID)
	}

	if err := d.sink.Enqueue(data); err != nil {
		d.status = StatusClosed
		d.metrics.MessagesDropped++
		d.logger.Debug("fan-out delivery failed, marking destination closed", "error", err)
		return fmt.Errorf("enqueue: %w", err)
	}

	d.metrics.MessagesSent++
	d.metrics.BytesSent += uint64(len(data))
	d.metrics.LastActivity = time.Now()
	return nil
}

// Close marks the destination as no longer receiving broadcasts.
func (d *Destination) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = StatusClosed
}

// GetMetrics returns a copy of the current delivery metrics.
func (d *Destination) GetMetrics() DestinationMetrics {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.metrics
}

// GetStatus returns the current delivery status.
func (d *Destination) GetStatus() DestinationStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}
