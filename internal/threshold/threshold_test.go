package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/torosent/querymeter/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError string
	}{
		{
			name:  "latency percentile",
			input: "query_duration:p95 < 500",
			want:  Threshold{Metric: "query_duration", Aggregate: "p95", Operator: "<", Value: 500, Raw: "query_duration:p95 < 500"},
		},
		{
			name:  "failure rate",
			input: "  query_failed:rate<0.01 ",
			want:  Threshold{Metric: "query_failed", Aggregate: "rate", Operator: "<", Value: 0.01, Raw: "query_failed:rate<0.01"},
		},
		{
			name:  "server qtime",
			input: "qtime:p99 <= 100",
			want:  Threshold{Metric: "qtime", Aggregate: "p99", Operator: "<=", Value: 100, Raw: "qtime:p99 <= 100"},
		},
		{name: "empty", input: "", wantError: "empty"},
		{name: "garbage", input: "fast please", wantError: "invalid threshold format"},
		{name: "unknown metric", input: "http_req_duration:p95 < 1", wantError: "unsupported metric"},
		{name: "aggregate not valid for metric", input: "qtime:count < 1", wantError: "unsupported aggregate"},
		{name: "bad operator", input: "queries:count != 1", wantError: "unsupported operator"},
		{name: "bad number", input: "queries:count > 1.2.3", wantError: "invalid threshold value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantError != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantError) {
					t.Fatalf("Parse(%q) error = %v, want %q", tt.input, err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseMultipleCollectsErrors(t *testing.T) {
	_, err := ParseMultiple([]string{"queries:count > 1", "nope", "qtime:avg < x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "threshold[1]") || !strings.Contains(err.Error(), "threshold[2]") {
		t.Errorf("error should name each bad entry: %v", err)
	}

	got, err := ParseMultiple(nil)
	if err != nil || got != nil {
		t.Errorf("ParseMultiple(nil) = %v, %v", got, err)
	}
}

func TestEvaluate(t *testing.T) {
	stats := metrics.Stats{
		Total:         200,
		Failures:      2,
		QueriesPerSec: 40,
		P95LatencyMs:  120,
		P95QTimeMs:    35,
		MeanNumFound:  12.5,
		Duration:      5 * time.Second,
	}
	tests := []struct {
		raw  string
		pass bool
		want float64
	}{
		{"query_duration:p95 < 200", true, 120},
		{"query_duration:p95 < 100", false, 120},
		{"qtime:p95 <= 35", true, 35},
		{"query_failed:rate < 0.005", false, 0.01},
		{"query_failed:count == 2", true, 2},
		{"queries:rate >= 40", true, 40},
		{"num_found:avg > 10", true, 12.5},
	}
	for _, tt := range tests {
		th, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", tt.raw, err)
		}
		res := NewEvaluator([]Threshold{th}).Evaluate(stats)
		if len(res) != 1 {
			t.Fatalf("Evaluate() returned %d results", len(res))
		}
		if res[0].Pass != tt.pass || res[0].Actual != tt.want {
			t.Errorf("%s: pass=%v actual=%v, want pass=%v actual=%v", tt.raw, res[0].Pass, res[0].Actual, tt.pass, tt.want)
		}
		if !strings.Contains(res[0].Message, tt.raw) {
			t.Errorf("message %q should contain %q", res[0].Message, tt.raw)
		}
	}
}

func TestFailureRateWithNoQueries(t *testing.T) {
	th, _ := Parse("query_failed:rate < 0.1")
	res := NewEvaluator([]Threshold{th}).Evaluate(metrics.Stats{})
	if !res[0].Pass || res[0].Actual != 0 {
		t.Errorf("empty run: %+v", res[0])
	}
}

func TestAllPassed(t *testing.T) {
	if !AllPassed(nil) {
		t.Error("no results should pass")
	}
	if AllPassed([]Result{{Pass: true}, {Pass: false}}) {
		t.Error("one failure should fail")
	}
}
