// Package standalone implements o11y.MetricsProvider without any external
// collector: every counter/histogram/gauge lives in memory and can be read
// back with Snapshot, for a deployment that doesn't run an OTel collector
// but still wants /debug-style visibility into connection/operation
// counts.
package standalone

import (
	"context"
	"sync"
	"time"

	"github.com/tsarna/graphql-transport-ws/o11y"
)

// Config configures the standalone provider.
type Config struct {
	ServiceName string
}

// Provider is an in-memory o11y.MetricsProvider. The zero value is not
// usable; construct with New.
type Provider struct {
	config Config

	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string][]float64
	gauges     map[string]float64
}

// New returns a ready-to-use Provider.
func New(config Config) *Provider {
	if config.ServiceName == "" {
		config.ServiceName = "gqlws"
	}
	return &Provider{
		config:     config,
		counters:   make(map[string]int64),
		histograms: make(map[string][]float64),
		gauges:     make(map[string]float64),
	}
}

func (p *Provider) Counter(name string) o11y.Counter {
	return &standaloneCounter{provider: p, name: name}
}

func (p *Provider) Histogram(name string) o11y.Histogram {
	return &standaloneHistogram{provider: p, name: name}
}

func (p *Provider) Gauge(name string) o11y.Gauge {
	return &standaloneGauge{provider: p, name: name}
}

// Snapshot is a point-in-time copy of every metric this provider has
// recorded, for a health endpoint or a debug log line to dump.
type Snapshot struct {
	Timestamp   time.Time            `json:"timestamp"`
	ServiceName string               `json:"service_name"`
	Counters    map[string]int64     `json:"counters"`
	Histograms  map[string][]float64 `json:"histograms"`
	Gauges      map[string]float64   `json:"gauges"`
}

// Snapshot copies out the current state of every metric.
func (p *Provider) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	counters := make(map[string]int64, len(p.counters))
	for k, v := range p.counters {
		counters[k] = v
	}
	histograms := make(map[string][]float64, len(p.histograms))
	for k, v := range p.histograms {
		histograms[k] = append([]float64(nil), v...)
	}
	gauges := make(map[string]float64, len(p.gauges))
	for k, v := range p.gauges {
		gauges[k] = v
	}

	return Snapshot{
		Timestamp:   time.Now(),
		ServiceName: p.config.ServiceName,
		Counters:    counters,
		Histograms:  histograms,
		Gauges:      gauges,
	}
}

type standaloneCounter struct {
	provider *Provider
	name     string
}

func (c *standaloneCounter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.provider.mu.Lock()
	defer c.provider.mu.Unlock()
	c.provider.counters[c.name] += value
}

type standaloneHistogram struct {
	provider *Provider
	name     string
}

func (h *standaloneHistogram) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()
	h.provider.histograms[h.name] = append(h.provider.histograms[h.name], value)
}

type standaloneGauge struct {
	provider *Provider
	name     string
}

func (g *standaloneGauge) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	g.provider.mu.Lock()
	defer g.provider.mu.Unlock()
	g.provider.gauges[g.name] = value
}
