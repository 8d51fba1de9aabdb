// Package stats implements the periodic connected-client census: a
// scheduled job that prints a one-line, never-a-valid-nickname-prefixed
// summary (`# stats ...`) to the same stdout stream broadcast lines go
// to, carrying both the live connection count and a host resource
// snapshot.
package stats

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/logiclrd/cotcpsrv/internal/relay"
)

// Reporter runs a cron-scheduled job that prints a connected-client and
// host-resource census. It only ever reads snapshotted data from the
// scheduler (a connection count and a copy of fan-out metrics), never a
// live reference into Task or Controller internals — the sanctioned
// concurrent-reader exception described for the ambient layer.
type Reporter struct {
	cron    *cron.Cron
	countFn func() int
	fanout  *relay.FanoutManager
	stdout  io.Writer
	logger  *slog.Logger
}

// NewReporter creates a Reporter that invokes countFn and reads fanout's
// metrics on the given cron schedule (robfig/cron/v3 syntax, e.g.
// "@every 30s"). An empty schedule disables the reporter: Start becomes
// a no-op.
func NewReporter(schedule string, countFn func() int, fanout *relay.FanoutManager, stdout io.Writer, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Reporter{
		countFn: countFn,
		fanout:  fanout,
		stdout:  stdout,
		logger:  logger.With("component", "stats_reporter"),
	}

	if schedule == "" {
		return r, nil
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, r.report); err != nil {
		return nil, fmt.Errorf("stats: invalid schedule %q: %w", schedule, err)
	}
	r.cron = c

	return r, nil
}

// Start begins the scheduled reporting job, if one was configured.
func (r *Reporter) Start() {
	if r.cron != nil {
		r.cron.Start()
	}
}

// Stop halts the scheduled reporting job and waits for any in-flight
// report to finish.
func (r *Reporter) Stop() {
	if r.cron != nil {
		ctx := r.cron.Stop()
		<-ctx.Done()
	}
}

// report collects one census line and writes it to stdout. Failures to
// read host metrics are logged and degrade the line gracefully (a
// best-effort feature, never allowed to affect chat delivery).
func (r *Reporter) report() {
	clients := 0
	if r.countFn != nil {
		clients = r.countFn()
	}

	cpuPct := readCPUPercent(r.logger)
	memPct := readMemPercent(r.logger)

	var sent, dropped uint64
	if r.fanout != nil {
		for _, m := range r.fanout.Metrics() {
			sent += m.MessagesSent
			dropped += m.MessagesDropped
		}
	}

	line := fmt.Sprintf("# stats clients=%d cpu=%.1f%% mem=%.1f%% sent=%d dropped=%d\n",
		clients, cpuPct, memPct, sent, dropped)

	if r.stdout != nil {
		fmt.Fprint(r.stdout, line)
	}
}

func readCPUPercent(logger *slog.Logger) float64 {
	percentages, err := cpu.Percent(0, false)
	if err != nil || len(percentages) == 0 {
		logger.Debug("failed to read cpu percent", "error", err)
		return 0
	}
	return percentages[0]
}

func readMemPercent(logger *slog.Logger) float64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logger.Debug("failed to read memory stats", "error", err)
		return 0
	}
	return vm.UsedPercent
}
