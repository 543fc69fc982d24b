package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/querymeter/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return
	}
	go p.run()
}

// Stop halts progress updates and ends the line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	wrote := false
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+progressLine(p.collector.Stats(p.collector.Elapsed())))
			wrote = true
		case <-p.done:
			if wrote {
				fmt.Fprintln(p.writer)
			}
			return
		}
	}
}

func progressLine(stats metrics.Stats) string {
	line := fmt.Sprintf("Queries: %d | Failures: %d | QPS: %.1f",
		stats.Total, stats.Failures, stats.QueriesPerSec)
	if stats.Successes > 0 {
		line += fmt.Sprintf(" | P95 %.1fms | QTime P95 %.0fms", stats.P95LatencyMs, stats.P95QTimeMs)
	}
	return line
}
