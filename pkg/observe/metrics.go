// Package observe provides application-wide observability primitives for
// thalamus: OpenTelemetry metrics and the Prometheus exporter bridge that
// serves them on /metrics.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all thalamus metrics.
const meterName = "github.com/thalamus-ai/thalamus"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// ChatRequests counts processed chat requests. Use with attributes:
	//   attribute.String("status", ...), attribute.Bool("consensus", ...)
	ChatRequests metric.Int64Counter

	// BackendRequests counts model backend calls. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	BackendRequests metric.Int64Counter

	// BackendDuration tracks model backend generate latency. Use with
	// attribute.String("backend", ...).
	BackendDuration metric.Float64Histogram

	// LookupRequests counts knowledge provider lookups. Use with attributes:
	//   attribute.String("provider", ...), attribute.Bool("hit", ...)
	LookupRequests metric.Int64Counter

	// MemoryItems tracks the live item count per memory layer. Use with
	// attribute.String("layer", ...).
	MemoryItems metric.Int64UpDownCounter

	// ThunksCreated counts generative compressions emitted by the
	// compression engine. Use with attribute.String("type", ...).
	ThunksCreated metric.Int64Counter

	// QualityFlags counts response quality flags raised. Use with
	// attribute.String("flag", ...).
	QualityFlags metric.Int64Counter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model-backend latencies: sub-second cache hits through multi-minute local
// model generations.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ChatRequests, err = m.Int64Counter("thalamus.chat.requests",
		metric.WithDescription("Number of processed chat requests."),
	); err != nil {
		return nil, err
	}
	if met.BackendRequests, err = m.Int64Counter("thalamus.backend.requests",
		metric.WithDescription("Number of model backend generate calls."),
	); err != nil {
		return nil, err
	}
	if met.BackendDuration, err = m.Float64Histogram("thalamus.backend.duration",
		metric.WithDescription("Latency of model backend generate calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LookupRequests, err = m.Int64Counter("thalamus.knowledge.lookups",
		metric.WithDescription("Number of knowledge provider lookups."),
	); err != nil {
		return nil, err
	}
	if met.MemoryItems, err = m.Int64UpDownCounter("thalamus.memory.items",
		metric.WithDescription("Live item count per memory layer."),
	); err != nil {
		return nil, err
	}
	if met.ThunksCreated, err = m.Int64Counter("thalamus.thunks.created",
		metric.WithDescription("Generative compressions emitted."),
	); err != nil {
		return nil, err
	}
	if met.QualityFlags, err = m.Int64Counter("thalamus.quality.flags",
		metric.WithDescription("Response quality flags raised."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("thalamus.http.duration",
		metric.WithDescription("HTTP request processing time."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance backed by the
// global OTel meter provider. Call [InitProvider] first so the instruments
// bind to the Prometheus exporter rather than the no-op provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			// Instrument creation only fails on malformed names, which are
			// compile-time constants here.
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
