// Package metrics aggregates per-query measurements during a load run.
//
// The [Collector] receives notifications from the query operation: client
// observed latency, server reported QTime and result count for every
// successful query, and a classified error for every failed one.
//
//	collector := metrics.NewCollector(metrics.WithInstruments(metrics.NewInstruments(reg)))
//	collector.Start()
//	...
//	stats := collector.Stats(elapsed)
//
// Latencies and QTimes are kept in HDR histograms so percentiles stay
// accurate without retaining samples. When [Instruments] are attached the
// same observations are exported as Prometheus series, and [NewServer]
// exposes them over HTTP at /metrics.
//
// All Collector methods are safe for concurrent use.
package metrics
