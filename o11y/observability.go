// Package o11y abstracts metrics and tracing so that gqlws, server, and
// authz can report connection/operation activity without depending on any
// particular observability SDK. A caller wires in the otel subpackage for
// OpenTelemetry-backed collection, the standalone subpackage for a
// dependency-free counter set, or nothing at all (every metric/span call
// is nil-checked and becomes a no-op).
package o11y

import "context"

// MetricsProvider abstracts metrics collection.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider abstracts distributed tracing.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter is a monotonically increasing metric.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records a distribution of values.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge is a value that can go up and down.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span is a unit of work in a trace.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a key-value pair attached to a metric point or span.
type Label struct {
	Key   string
	Value string
}

// SpanStatusCode is the outcome of a traced operation.
type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)

// Config bundles the optional providers a gqlws/server deployment wires
// in, plus the service identity used to name OTel meters/tracers.
type Config struct {
	MetricsProvider MetricsProvider
	TracingProvider TracingProvider
	ServiceName     string
	ServiceVersion  string
}
