package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/querymeter/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	if got := progressLine(metrics.Stats{}); got != "Queries: 0 | Failures: 0 | QPS: 0.0" {
		t.Errorf("empty line = %q", got)
	}

	line := progressLine(metrics.Stats{Total: 10, Successes: 9, Failures: 1, QueriesPerSec: 5, P95LatencyMs: 12.34, P95QTimeMs: 3})
	for _, want := range []string{"Queries: 10", "Failures: 1", "QPS: 5.0", "P95 12.3ms", "QTime P95 3ms"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestProgressReporterWrites(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.RecordQuery(30*time.Millisecond, 2, 1)

	buf := &syncBuffer{}
	reporter := NewProgressReporter(collector, 10*time.Millisecond, buf)
	reporter.Start()
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.Contains(out, "\rQueries: 1") {
		t.Errorf("expected progress output, got %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Errorf("expected trailing newline after stop, got %q", out)
	}
}

func TestProgressReporterNilWriter(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), time.Millisecond, nil)
	reporter.Start()
	reporter.Stop()
}
