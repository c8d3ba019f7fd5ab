package labelgo

import (
	"log/slog"

	"golang.org/x/time/rate"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	limiter          *rate.Limiter
	validateGeo      bool
}

// Option configures constructor/load behavior.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &labelgo.BasicMetricsCollector{}
//	lg := labelgo.Open("labels.bin", labelgo.WithMetricsCollector(metrics))
//	// ... use lg ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := labelgo.NewJSONLogger(slog.LevelInfo)
//	lg := labelgo.Open("labels.bin", labelgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithDownloadRate throttles blob downloads to bytesPerSec, so bulk cache
// loads do not saturate shared egress. Only OpenBlob is affected; zero or
// negative disables throttling.
func WithDownloadRate(bytesPerSec int) Option {
	return func(o *options) {
		if bytesPerSec <= 0 {
			o.limiter = nil
			return
		}
		o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
}

// WithGeoValidation rejects query boxes whose coordinates leave the
// plausible longitude/latitude ranges when the dataset is geographic.
// Disabled by default: planar datasets and callers doing their own
// clamping pass arbitrary boxes.
func WithGeoValidation() Option {
	return func(o *options) {
		o.validateGeo = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
