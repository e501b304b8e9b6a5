package athina

import "time"

// Metrics is an optional interface for SDK telemetry.
// pkg/metrics provides a Prometheus implementation.
type Metrics interface {
	// IncrementCounter increments a counter metric.
	IncrementCounter(name string, value int64)
	// RecordDuration records a duration metric.
	RecordDuration(name string, duration time.Duration)
	// SetGauge sets a gauge metric.
	SetGauge(name string, value float64)
}

// Metric names reported through Metrics.
const (
	MetricTracesEnded      = "athina.traces.ended"
	MetricInferencesLogged = "athina.inferences.logged"
	MetricDeliveriesSent   = "athina.deliveries.sent"
	MetricDeliveriesFailed = "athina.deliveries.failed"
	MetricDispatchDropped  = "athina.dispatch.dropped"
	MetricDeliveryDuration = "athina.delivery.duration"
	MetricQueueDepth       = "athina.dispatch.queue_depth"
	MetricAsyncErrors      = "athina.errors"
)

// ClientStats is a point-in-time snapshot of client activity.
type ClientStats struct {
	Closed        bool  `json:"closed"`
	QueueDepth    int   `json:"queue_depth"`
	QueueCapacity int   `json:"queue_capacity"`
	Pending       int64 `json:"pending"`
	TracesEnded   int64 `json:"traces_ended"`
	Dropped       int64 `json:"dropped"`
	Errors        int64 `json:"errors"`
}

// Stats returns a snapshot of the client's queue and counters.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Closed:        c.isClosed(),
		QueueDepth:    len(c.dispatch.jobs),
		QueueCapacity: cap(c.dispatch.jobs),
		Pending:       c.dispatch.pendingCount(),
		TracesEnded:   c.tracesEnded.Load(),
		Dropped:       c.dropped.Load(),
		Errors:        c.asyncErrs.Load(),
	}
}
