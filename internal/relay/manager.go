package relay

import (
	"log/slog"
	"sync"
)

// FanoutManager tracks the set of currently connected Tasks as broadcast
// fan-out destinations, keyed by connection id.
type FanoutManager struct {
	destinations map[string]*Destination
	mu           sync.RWMutex
	logger       *slog.Logger
}

// NewFanoutManager creates an empty fan-out manager.
func NewFanoutManager(logger *slog.Logger) *FanoutManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanoutManager{
		destinations: make(map[string]*Destination),
		logger:       logger.With("component", "fanout_manager"),
	}
}

// Register adds sink as a broadcast destination.
func (fm *FanoutManager) Register(sink Sink) *Destination {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	dest := NewDestination(sink, fm.logger)
	fm.destinations[sink.ConnID()] = dest
	fm.logger.Debug("registered fan-out destination", "conn_id", sink.ConnID(), "total", len(fm.destinations))
	return dest
}

// Unregister removes connID from the fan-out set, e.g. once its Task has
// finished.
func (fm *FanoutManager) Unregister(connID string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if dest, ok := fm.destinations[connID]; ok {
		dest.Close()
		delete(fm.destinations, connID)
		fm.logger.Debug("unregistered fan-out destination", "conn_id", connID, "total", len(fm.destinations))
	}
}

// Broadcast delivers data to every registered destination except
// skipConnID (typically the sender, which does not receive its own line).
// Delivery is sequential, matching the original single-pass
// broadcast loop: Deliver only enqueues onto each Task's own write queue,
// it never dispatches that Task, so this never reenters the scheduler and
// never runs concurrently with it.
func (fm *FanoutManager) Broadcast(data []byte, skipConnID string) {
	fm.mu.RLock()
	targets := make([]*Destination, 0, len(fm.destinations))
	for connID, dest := range fm.destinations {
		if connID == skipConnID {
			continue
		}
		targets = append(targets, dest)
	}
	fm.mu.RUnlock()

	for _, dest := range targets {
		if err := dest.Deliver(data); err != nil {
			fm.logger.Debug("broadcast delivery failed", "conn_id", dest.ConnID, "error", err)
		}
	}
}

// Count returns the number of currently registered destinations.
func (fm *FanoutManager) Count() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.destinations)
}

// Metrics returns a snapshot of delivery metrics for every destination,
// keyed by connection id.
func (fm *FanoutManager) Metrics() map[string]DestinationMetrics {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	out := make(map[string]DestinationMetrics, len(fm.destinations))
	for connID, dest := range fm.destinations {
		out[connID] = dest.GetMetrics()
	}
	return out
}
