// Package threshold evaluates pass/fail assertions against run statistics.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/torosent/querymeter/internal/metrics"
)

// Threshold is one assertion, e.g. "qtime:p95 < 50".
type Threshold struct {
	Metric    string
	Aggregate string
	Operator  string
	Value     float64
	Raw       string
}

type Result struct {
	Threshold Threshold `json:"-"`
	Raw       string    `json:"threshold"`
	Actual    float64   `json:"actual"`
	Pass      bool      `json:"pass"`
	Message   string    `json:"-"`
}

type extractor func(metrics.Stats) float64

// aggregates lists, per metric, how each aggregate is read from Stats.
// Durations are milliseconds; rates are per second or fractions.
var aggregates = map[string]map[string]extractor{
	"query_duration": {
		"p50": func(s metrics.Stats) float64 { return s.P50LatencyMs },
		"p90": func(s metrics.Stats) float64 { return s.P90LatencyMs },
		"p95": func(s metrics.Stats) float64 { return s.P95LatencyMs },
		"p99": func(s metrics.Stats) float64 { return s.P99LatencyMs },
		"avg": func(s metrics.Stats) float64 { return s.MeanLatencyMs },
		"min": func(s metrics.Stats) float64 { return s.MinLatencyMs },
		"max": func(s metrics.Stats) float64 { return s.MaxLatencyMs },
	},
	"qtime": {
		"p50": func(s metrics.Stats) float64 { return s.P50QTimeMs },
		"p95": func(s metrics.Stats) float64 { return s.P95QTimeMs },
		"p99": func(s metrics.Stats) float64 { return s.P99QTimeMs },
		"avg": func(s metrics.Stats) float64 { return s.MeanQTimeMs },
		"max": func(s metrics.Stats) float64 { return s.MaxQTimeMs },
	},
	"query_failed": {
		"count": func(s metrics.Stats) float64 { return float64(s.Failures) },
		"rate": func(s metrics.Stats) float64 {
			if s.Total == 0 {
				return 0
			}
			return float64(s.Failures) / float64(s.Total)
		},
	},
	"queries": {
		"count": func(s metrics.Stats) float64 { return float64(s.Total) },
		"rate":  func(s metrics.Stats) float64 { return s.QueriesPerSec },
	},
	"num_found": {
		"avg": func(s metrics.Stats) float64 { return s.MeanNumFound },
	},
}

var pattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse reads "metric:aggregate operator value".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected metric:aggregate operator value, e.g. 'query_duration:p95 < 500')", s)
	}
	metric, aggregate, operator := m[1], m[2], m[3]

	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", m[4], err)
	}

	aggs, ok := aggregates[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(keys(aggregates), ", "))
	}
	if _, ok := aggs[aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(keys(aggs), ", "))
	}
	switch operator {
	case "<", "<=", ">", ">=", "==":
	default:
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{Metric: metric, Aggregate: aggregate, Operator: operator, Value: value, Raw: s}, nil
}

// ParseMultiple parses every entry and reports all failures together.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var problems []string
	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return result, nil
}

type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks all thresholds against stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		actual := aggregates[t.Metric][t.Aggregate](stats)
		pass := compare(actual, t.Operator, t.Value)
		mark := "✓"
		if !pass {
			mark = "✗"
		}
		results = append(results, Result{
			Threshold: t,
			Raw:       t.Raw,
			Actual:    actual,
			Pass:      pass,
			Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value),
		})
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func compare(actual float64, operator string, expected float64) bool {
	const epsilon = 1e-9
	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	}
	return false
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
