package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/logiclrd/cotcpsrv/internal/relay"
)

func TestReportWritesStatsLine(t *testing.T) {
	var buf bytes.Buffer
	fanout := relay.NewFanoutManager(nil)

	r, err := NewReporter("", func() int { return 3 }, fanout, &buf, nil)
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}

	r.report()

	out := buf.String()
	if !strings.HasPrefix(out, "# stats ") {
		t.Fatalf("expected stats line prefix, got %q", out)
	}
	if !strings.Contains(out, "clients=3") {
		t.Fatalf("expected clients=3 in stats line, got %q", out)
	}
}

func TestNewReporterRejectsInvalidSchedule(t *testing.T) {
	if _, err := NewReporter("not a cron expression", nil, nil, nil, nil); err == nil {
		t.Fatalf("expected invalid cron schedule to be rejected")
	}
}

func TestEmptyScheduleDisablesStart(t *testing.T) {
	r, err := NewReporter("", nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	// Start/Stop must be no-ops without panicking when no schedule is set.
	r.Start()
	r.Stop()
}
