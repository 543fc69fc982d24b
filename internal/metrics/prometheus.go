package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "querymeter"

// Instruments are the Prometheus series fed by a Collector. A nil
// *Instruments is valid and records nothing.
type Instruments struct {
	queries  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration prometheus.Histogram
	qtime    prometheus.Histogram
	numFound prometheus.Histogram
	workers  prometheus.Gauge
}

// NewInstruments creates the series and registers them with reg.
func NewInstruments(reg prometheus.Registerer) *Instruments {
	in := &Instruments{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total queries executed, by outcome",
		}, []string{"outcome"}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_errors_total",
			Help:      "Failed queries, by error kind",
		}, []string{"kind"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Client observed query latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		qtime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "server_qtime_seconds",
			Help:      "Server reported query processing time",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		numFound: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_num_found",
			Help:      "Documents matched per query",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 8),
		}),

		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Configured concurrent workers",
		}),
	}
	if reg != nil {
		reg.MustRegister(in.queries, in.errors, in.duration, in.qtime, in.numFound, in.workers)
	}
	return in
}

// SetWorkers publishes the configured concurrency.
func (in *Instruments) SetWorkers(n int) {
	if in == nil {
		return
	}
	in.workers.Set(float64(n))
}

func (in *Instruments) observeSuccess(latency time.Duration, qtimeMs, numFound int64) {
	if in == nil {
		return
	}
	in.queries.WithLabelValues("success").Inc()
	in.duration.Observe(latency.Seconds())
	if qtimeMs >= 0 {
		in.qtime.Observe(float64(qtimeMs) / 1000)
	}
	in.numFound.Observe(float64(numFound))
}

func (in *Instruments) observeFailure(kind string) {
	if in == nil {
		return
	}
	in.queries.WithLabelValues("failure").Inc()
	in.errors.WithLabelValues(kind).Inc()
}
