package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/querymeter/internal/operation"
	"github.com/torosent/querymeter/internal/query"
)

// Collector records per-query metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	latency      *hdrhistogram.Histogram // microseconds
	qtime        *hdrhistogram.Histogram // milliseconds
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	sumQTime     int64
	sumNumFound  int64
	errorsByType map[string]int64
	start        time.Time
	instruments  *Instruments
}

var _ operation.Notifier = (*Collector)(nil)

// Stats represents aggregated metrics.
type Stats struct {
	Total         int64         `json:"total"`
	Successes     int64         `json:"successes"`
	Failures      int64         `json:"failures"`
	MinLatency    time.Duration `json:"-"`
	MaxLatency    time.Duration `json:"-"`
	MeanLatency   time.Duration `json:"-"`
	P50Latency    time.Duration `json:"-"`
	P90Latency    time.Duration `json:"-"`
	P95Latency    time.Duration `json:"-"`
	P99Latency    time.Duration `json:"-"`
	Duration      time.Duration `json:"-"`
	QueriesPerSec float64       `json:"queries_per_sec"`

	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`

	// Server-reported processing time, in milliseconds.
	MeanQTimeMs float64 `json:"mean_qtime_ms"`
	P50QTimeMs  float64 `json:"p50_qtime_ms"`
	P95QTimeMs  float64 `json:"p95_qtime_ms"`
	P99QTimeMs  float64 `json:"p99_qtime_ms"`
	MaxQTimeMs  float64 `json:"max_qtime_ms"`

	MeanNumFound float64        `json:"mean_num_found"`
	Errors       map[string]int `json:"errors,omitempty"`
}

type CollectorOption func(*Collector)

// WithInstruments mirrors every observation into Prometheus instruments.
func WithInstruments(in *Instruments) CollectorOption {
	return func(c *Collector) {
		c.instruments = in
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		// 1µs to 60s, 3 significant figures.
		latency: hdrhistogram.New(1, 60_000_000, 3),
		// 1ms to 1h.
		qtime:        hdrhistogram.New(1, 3_600_000, 3),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start resets the clock used for elapsed time.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// NotifyQueryExecuted implements operation.Notifier.
func (c *Collector) NotifyQueryExecuted(resp *query.Response, elapsed time.Duration) {
	if resp == nil {
		return
	}
	c.RecordQuery(elapsed, resp.QTime, resp.NumFound)
}

// NotifyError implements operation.Notifier.
func (c *Collector) NotifyError(err *operation.QueryError) {
	if err == nil {
		return
	}
	c.RecordFailure(err)
}

// RecordQuery records one successful query.
func (c *Collector) RecordQuery(latency time.Duration, qtimeMs, numFound int64) {
	c.mu.Lock()
	c.recordLatency(latency)
	if qtimeMs >= 0 {
		_ = c.qtime.RecordValue(clamp(qtimeMs, c.qtime))
		c.sumQTime += qtimeMs
	}
	c.sumNumFound += numFound
	c.successes++
	c.mu.Unlock()

	c.instruments.observeSuccess(latency, qtimeMs, numFound)
}

// RecordFailure records one failed query under its classified error name.
func (c *Collector) RecordFailure(err error) {
	kind := ErrorKind(err)

	c.mu.Lock()
	c.failures++
	c.errorsByType[kind]++
	c.mu.Unlock()

	c.instruments.observeFailure(kind)
}

func (c *Collector) recordLatency(latency time.Duration) {
	if latency > 0 {
		_ = c.latency.RecordValue(clamp(latency.Microseconds(), c.latency))
	}
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

func clamp(v int64, h *hdrhistogram.Histogram) int64 {
	if v < 0 {
		return 0
	}
	if v > h.HighestTrackableValue() {
		return h.HighestTrackableValue()
	}
	return v
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:      total,
		Successes:  c.successes,
		Failures:   c.failures,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
	}

	if c.successes > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.successes)
		stats.MeanNumFound = float64(c.sumNumFound) / float64(c.successes)
	}

	if c.latency.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.latency.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.latency.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.latency.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.latency.ValueAtQuantile(99)) * time.Microsecond
	}
	if n := c.qtime.TotalCount(); n > 0 {
		stats.MeanQTimeMs = float64(c.sumQTime) / float64(n)
		stats.P50QTimeMs = float64(c.qtime.ValueAtQuantile(50))
		stats.P95QTimeMs = float64(c.qtime.ValueAtQuantile(95))
		stats.P99QTimeMs = float64(c.qtime.ValueAtQuantile(99))
		stats.MaxQTimeMs = float64(c.qtime.Max())
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 && total > 0 {
		stats.QueriesPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}

	return stats
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
