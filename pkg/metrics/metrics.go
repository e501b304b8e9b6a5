// Package metrics exports athina client metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	client, _ := athina.New(key, athina.WithMetrics(metrics.New(reg)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdziat/athina-go"
)

// Prometheus implements athina.Metrics. Collectors are created on first use
// and registered with the registerer given to New.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

var _ athina.Metrics = (*Prometheus)(nil)

// Option configures a Prometheus recorder.
type Option func(*Prometheus)

// WithNamespace prefixes every metric name. The default is none, since the
// client's metric names already start with "athina".
func WithNamespace(ns string) Option {
	return func(p *Prometheus) { p.namespace = ns }
}

// WithBuckets sets the histogram buckets, in seconds, used for durations.
func WithBuckets(buckets []float64) Option {
	return func(p *Prometheus) { p.buckets = buckets }
}

// New returns a recorder registering with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		reg:        reg,
		buckets:    []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IncrementCounter adds value to the counter name. Negative values are
// ignored.
func (p *Prometheus) IncrementCounter(name string, value int64) {
	if value < 0 {
		return
	}
	p.mu.Lock()
	c, ok := p.counters[name]
	if !ok {
		c = register(p.reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Athina client counter " + name + ".",
		}))
		p.counters[name] = c
	}
	p.mu.Unlock()
	c.Add(float64(value))
}

// RecordDuration observes duration, in seconds, on the histogram name.
func (p *Prometheus) RecordDuration(name string, duration time.Duration) {
	p.mu.Lock()
	h, ok := p.histograms[name]
	if !ok {
		h = register(p.reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Athina client duration " + name + ".",
			Buckets:   p.buckets,
		}))
		p.histograms[name] = h
	}
	p.mu.Unlock()
	h.Observe(duration.Seconds())
}

// SetGauge sets the gauge name.
func (p *Prometheus) SetGauge(name string, value float64) {
	p.mu.Lock()
	g, ok := p.gauges[name]
	if !ok {
		g = register(p.reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      metricName(name),
			Help:      "Athina client gauge " + name + ".",
		}))
		p.gauges[name] = g
	}
	p.mu.Unlock()
	g.Set(value)
}

// register registers c, reusing an identical collector registered earlier
// by another recorder.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// metricName maps "athina.delivery.duration" to "athina_delivery_duration".
func metricName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}
