package athinatest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jdziat/athina-go"
)

var (
	_ athina.Metrics          = (*MockMetrics)(nil)
	_ athina.StructuredLogger = (*MockLogger)(nil)
	_ athina.Deliverer        = (*RecordingDeliverer)(nil)
)

// MockMetrics records all metrics operations for later verification.
type MockMetrics struct {
	mu       sync.Mutex
	Counters map[string]int64
	Gauges   map[string]float64
	Timings  map[string][]time.Duration
}

// NewMockMetrics creates a new mock metrics collector.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Counters: make(map[string]int64),
		Gauges:   make(map[string]float64),
		Timings:  make(map[string][]time.Duration),
	}
}

// IncrementCounter implements Metrics.IncrementCounter.
func (m *MockMetrics) IncrementCounter(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name] += value
}

// RecordDuration implements Metrics.RecordDuration.
func (m *MockMetrics) RecordDuration(name string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[name] = append(m.Timings[name], duration)
}

// SetGauge implements Metrics.SetGauge.
func (m *MockMetrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[name] = value
}

// GetCounter returns the value of a counter.
func (m *MockMetrics) GetCounter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[name]
}

// GetGauge returns the value of a gauge.
func (m *MockMetrics) GetGauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gauges[name]
}

// GetTimings returns all recorded timings for a metric.
func (m *MockMetrics) GetTimings(name string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration{}, m.Timings[name]...)
}

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// String renders the entry as "LEVEL message k=v ...".
func (e LogEntry) String() string {
	s := e.Level + " " + e.Message
	for i := 0; i+1 < len(e.Args); i += 2 {
		s += fmt.Sprintf(" %v=%v", e.Args[i], e.Args[i+1])
	}
	return s
}

// MockLogger captures all log calls for later verification.
type MockLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

// NewMockLogger creates a new mock logger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (l *MockLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Args: append([]any(nil), args...)})
}

// Debug implements StructuredLogger.Debug.
func (l *MockLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }

// Info implements StructuredLogger.Info.
func (l *MockLogger) Info(msg string, args ...any) { l.log("INFO", msg, args) }

// Warn implements StructuredLogger.Warn.
func (l *MockLogger) Warn(msg string, args ...any) { l.log("WARN", msg, args) }

// Error implements StructuredLogger.Error.
func (l *MockLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

// GetEntries returns all captured entries.
func (l *MockLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry{}, l.Entries...)
}

// EntriesAt returns the entries logged at level ("DEBUG", "INFO", "WARN" or
// "ERROR").
func (l *MockLogger) EntriesAt(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.Entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Delivery is one payload accepted by a RecordingDeliverer, with its body
// decoded from JSON.
type Delivery struct {
	Method string
	Path   string
	Body   map[string]any
}

// RecordingDeliverer implements Deliverer by storing payloads in memory.
type RecordingDeliverer struct {
	// Delay is slept before each delivery is recorded. The wait is cut short
	// when the delivery context ends.
	Delay time.Duration

	// Err, if set, is returned from every Deliver call.
	Err error

	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecordingDeliverer creates an empty RecordingDeliverer.
func NewRecordingDeliverer() *RecordingDeliverer {
	return &RecordingDeliverer{}
}

// Deliver implements Deliverer.
func (d *RecordingDeliverer) Deliver(ctx context.Context, req *athina.DeliveryRequest) error {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	raw, err := json.Marshal(req.Body)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}

	d.mu.Lock()
	d.deliveries = append(d.deliveries, Delivery{Method: req.Method, Path: req.Path, Body: body})
	d.mu.Unlock()
	return d.Err
}

// Deliveries returns every recorded delivery in arrival order.
func (d *RecordingDeliverer) Deliveries() []Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Delivery{}, d.deliveries...)
}

// Traces returns the "trace" objects of recorded trace deliveries.
func (d *RecordingDeliverer) Traces() []map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []map[string]any
	for _, dl := range d.deliveries {
		if dl.Path != athina.PathTrace {
			continue
		}
		if tr, ok := dl.Body["trace"].(map[string]any); ok {
			out = append(out, tr)
		}
	}
	return out
}

// Count returns the number of recorded deliveries.
func (d *RecordingDeliverer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deliveries)
}
