package gqlws

import (
	"context"
	"time"

	"github.com/tsarna/graphql-transport-ws/o11y"
)

// Metrics is the standard set of instruments a Connection reports
// through, each nil-checked so a caller who doesn't wire an
// o11y.MetricsProvider pays nothing. Grounded field-for-field on
// websockets/server/metrics.go's WebSocketMetrics, renamed from
// message/request vocabulary to operation vocabulary.
type Metrics struct {
	activeConnections  o11y.Gauge
	totalConnections   o11y.Counter
	connectionDuration o11y.Histogram
	connectionErrors   o11y.Counter

	framesReceived o11y.Counter
	framesSent     o11y.Counter
	frameErrors    o11y.Counter

	operationsStarted  o11y.Counter
	operationDuration  o11y.Histogram
	operationErrors    o11y.Counter
	activeOperations   o11y.Gauge

	pingsSent    o11y.Counter
	pongTimeouts o11y.Counter
}

// NewMetrics builds a Metrics from provider. A nil provider yields a nil
// *Metrics, and every method on a nil *Metrics is a safe no-op.
func NewMetrics(provider o11y.MetricsProvider) *Metrics {
	if provider == nil {
		return nil
	}
	return &Metrics{
		activeConnections:  provider.Gauge("gqlws_active_connections"),
		totalConnections:   provider.Counter("gqlws_connections_total"),
		connectionDuration: provider.Histogram("gqlws_connection_duration_seconds"),
		connectionErrors:   provider.Counter("gqlws_connection_errors_total"),

		framesReceived: provider.Counter("gqlws_frames_received_total"),
		framesSent:     provider.Counter("gqlws_frames_sent_total"),
		frameErrors:    provider.Counter("gqlws_frame_errors_total"),

		operationsStarted: provider.Counter("gqlws_operations_started_total"),
		operationDuration: provider.Histogram("gqlws_operation_duration_seconds"),
		operationErrors:   provider.Counter("gqlws_operation_errors_total"),
		activeOperations:  provider.Gauge("gqlws_active_operations"),

		pingsSent:    provider.Counter("gqlws_pings_sent_total"),
		pongTimeouts: provider.Counter("gqlws_pong_timeouts_total"),
	}
}

func (m *Metrics) connectionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.totalConnections.Add(ctx, 1)
}

func (m *Metrics) connectionEnded(ctx context.Context, duration time.Duration) {
	if m == nil {
		return
	}
	m.connectionDuration.Record(ctx, duration.Seconds())
}

func (m *Metrics) connectionError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.connectionErrors.Add(ctx, 1, o11y.Label{Key: "error_type", Value: errorType})
}

func (m *Metrics) frameReceived(ctx context.Context, typ string) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, o11y.Label{Key: "type", Value: typ})
}

func (m *Metrics) frameSent(ctx context.Context, typ string) {
	if m == nil {
		return
	}
	m.framesSent.Add(ctx, 1, o11y.Label{Key: "type", Value: typ})
}

func (m *Metrics) frameError(ctx context.Context, cause string) {
	if m == nil {
		return
	}
	m.frameErrors.Add(ctx, 1, o11y.Label{Key: "cause", Value: cause})
}

func (m *Metrics) operationStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.operationsStarted.Add(ctx, 1)
}

func (m *Metrics) operationEnded(ctx context.Context, duration time.Duration, errored bool) {
	if m == nil {
		return
	}
	m.operationDuration.Record(ctx, duration.Seconds())
	if errored {
		m.operationErrors.Add(ctx, 1)
	}
}

func (m *Metrics) pingSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.pingsSent.Add(ctx, 1)
}

func (m *Metrics) pongTimeout(ctx context.Context) {
	if m == nil {
		return
	}
	m.pongTimeouts.Add(ctx, 1)
}
