// Package observe provides application-wide observability primitives for the
// chat backend: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/ColinWang98/Intercultural-Town"

// Agent-call outcomes recorded with [Metrics.RecordAgentCall].
const (
	// OutcomeOK marks a call that produced a usable reply.
	OutcomeOK = "ok"

	// OutcomeEmpty marks a call whose reply sanitized down to nothing.
	OutcomeEmpty = "empty"

	// OutcomeError marks a failed call (provider error or timeout).
	OutcomeError = "error"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation. A nil *Metrics is valid: every recorder method
// is a no-op on it, so callers never need to guard.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks end-to-end player-turn latency by dispatch phase.
	TurnDuration metric.Float64Histogram

	// AgentCallDuration tracks single persona-call latency.
	AgentCallDuration metric.Float64Histogram

	// --- Counters ---

	// AgentCalls counts persona calls. Use with attributes:
	//   attribute.String("persona", ...), attribute.String("outcome", ...)
	AgentCalls metric.Int64Counter

	// ProviderRequests counts model provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Gauges ---

	// ActiveConversations tracks the number of stored conversations.
	ActiveConversations metric.Int64UpDownCounter

	// ActiveWatchers tracks the number of connected watch sockets.
	ActiveWatchers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// model-call latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("townchat.turn.duration",
		metric.WithDescription("End-to-end player-turn latency by dispatch phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AgentCallDuration, err = m.Float64Histogram("townchat.agent.call.duration",
		metric.WithDescription("Latency of a single persona call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AgentCalls, err = m.Int64Counter("townchat.agent.calls",
		metric.WithDescription("Total persona calls by persona and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("townchat.provider.requests",
		metric.WithDescription("Total model provider API requests by provider and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveConversations, err = m.Int64UpDownCounter("townchat.active_conversations",
		metric.WithDescription("Number of stored conversations."),
	); err != nil {
		return nil, err
	}
	if met.ActiveWatchers, err = m.Int64UpDownCounter("townchat.active_watchers",
		metric.WithDescription("Number of connected watch sockets."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("townchat.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one completed player turn. No-op on a nil receiver.
func (m *Metrics) RecordTurn(ctx context.Context, phase string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TurnDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("phase", phase)),
	)
}

// RecordAgentCall records one persona call with its outcome. No-op on a nil
// receiver.
func (m *Metrics) RecordAgentCall(ctx context.Context, personaID, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("persona", personaID),
		attribute.String("outcome", outcome),
	)
	m.AgentCalls.Add(ctx, 1, attrs)
	if elapsed > 0 {
		m.AgentCallDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordProviderRequest records a model provider API call. No-op on a nil
// receiver.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// ConversationOpened adjusts the active-conversation gauge. No-op on a nil
// receiver.
func (m *Metrics) ConversationOpened(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveConversations.Add(ctx, delta)
}

// WatcherConnected adjusts the active-watcher gauge. No-op on a nil receiver.
func (m *Metrics) WatcherConnected(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveWatchers.Add(ctx, delta)
}
