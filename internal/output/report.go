package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/querymeter/internal/metrics"
	"github.com/torosent/querymeter/internal/threshold"
)

// Report is the machine-readable summary of one run.
type Report struct {
	Target     string             `json:"target"`
	Mode       string             `json:"mode"`
	StartedAt  time.Time          `json:"started_at"`
	Stats      metrics.Stats      `json:"stats"`
	Thresholds []threshold.Result `json:"thresholds,omitempty"`
	Aborted    string             `json:"aborted,omitempty"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Query Load Results ---")
	fmt.Fprintf(w, "Total Queries:     %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Queries/sec:       %.2f\n", stats.QueriesPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if stats.Successes > 0 {
		fmt.Fprintln(w, "\nServer QTime:")
		fmt.Fprintf(w, "  Mean:            %.1fms\n", stats.MeanQTimeMs)
		fmt.Fprintf(w, "  P50:             %.0fms\n", stats.P50QTimeMs)
		fmt.Fprintf(w, "  P95:             %.0fms\n", stats.P95QTimeMs)
		fmt.Fprintf(w, "  P99:             %.0fms\n", stats.P99QTimeMs)
		fmt.Fprintf(w, "  Max:             %.0fms\n", stats.MaxQTimeMs)
		fmt.Fprintf(w, "\nMean numFound:     %.1f\n", stats.MeanNumFound)
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, b := range metrics.SortErrors(stats.Errors) {
			fmt.Fprintf(w, "  %s: %d\n", b.Kind, b.Count)
		}
	}
}

// PrintThresholds writes one line per evaluated threshold.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// AppendJSONReport appends report as one JSON line to path. A sibling
// ".lock" file serializes writers from concurrent processes.
func AppendJSONReport(path string, report Report) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	defer lock.Unlock()

	line, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return f.Close()
}
