package gqlws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsarna/graphql-transport-ws/o11y/standalone"
)

func TestMetrics_NilIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.connectionStarted(context.Background())
		m.connectionEnded(context.Background(), 0)
		m.frameReceived(context.Background(), "ping")
		m.operationStarted(context.Background())
		m.pingSent(context.Background())
	})
}

func TestMetrics_RecordsThroughProvider(t *testing.T) {
	provider := standalone.New(standalone.Config{ServiceName: "test"})
	m := NewMetrics(provider)
	require := assert.New(t)

	m.connectionStarted(context.Background())
	m.frameReceived(context.Background(), "subscribe")
	m.operationStarted(context.Background())

	snap := provider.Snapshot()
	require.Equal(int64(1), snap.Counters["gqlws_connections_total"])
	require.Equal(int64(1), snap.Counters["gqlws_frames_received_total"])
	require.Equal(int64(1), snap.Counters["gqlws_operations_started_total"])
}
