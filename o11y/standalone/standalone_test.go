package standalone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProvider_CounterAccumulates(t *testing.T) {
	p := New(Config{ServiceName: "test"})
	c := p.Counter("connections_opened")
	c.Add(context.Background(), 1)
	c.Add(context.Background(), 2)

	snap := p.Snapshot()
	assert.Equal(t, int64(3), snap.Counters["connections_opened"])
	assert.Equal(t, "test", snap.ServiceName)
}

func TestProvider_HistogramAppends(t *testing.T) {
	p := New(Config{})
	h := p.Histogram("operation_duration_ms")
	h.Record(context.Background(), 1.5)
	h.Record(context.Background(), 2.5)

	snap := p.Snapshot()
	assert.Equal(t, []float64{1.5, 2.5}, snap.Histograms["operation_duration_ms"])
}

func TestProvider_GaugeOverwrites(t *testing.T) {
	p := New(Config{})
	g := p.Gauge("active_operations")
	g.Set(context.Background(), 3)
	g.Set(context.Background(), 5)

	snap := p.Snapshot()
	assert.Equal(t, float64(5), snap.Gauges["active_operations"])
}
