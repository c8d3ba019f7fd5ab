package labelgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    loadCounter    prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(results int, duration time.Duration, err error) {
//	    p.queryHistogram.Observe(duration.Seconds())
//	    // ... record error state, result counts, etc.
//	}
type MetricsCollector interface {
	// RecordLoad is called once per dataset load attempt.
	// count is the number of labels loaded, err is nil if successful.
	RecordLoad(count int, duration time.Duration, err error)

	// RecordQuery is called after each range query.
	// results is the number of labels returned, err is nil if successful.
	RecordQuery(results int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	LabelsLoaded    atomic.Int64
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	ResultsReturned atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(count int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LabelsLoaded.Add(int64(count))
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(results int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	b.ResultsReturned.Add(int64(results))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:       b.LoadCount.Load(),
		LoadErrors:      b.LoadErrors.Load(),
		LabelsLoaded:    b.LabelsLoaded.Load(),
		QueryCount:      b.QueryCount.Load(),
		QueryErrors:     b.QueryErrors.Load(),
		QueryAvgNanos:   b.getAvgQueryNanos(),
		ResultsReturned: b.ResultsReturned.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount       int64
	LoadErrors      int64
	LabelsLoaded    int64
	QueryCount      int64
	QueryErrors     int64
	QueryAvgNanos   int64
	ResultsReturned int64
}
