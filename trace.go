package athina

import (
	"sync"
	"time"
)

// Trace is the root of one logical operation. It owns an ordered forest of
// spans and generations and is delivered as a single payload when it ends.
//
// A Trace is safe for concurrent use.
type Trace struct {
	mu     sync.Mutex
	client *Client
	logger StructuredLogger

	name       string
	startTime  time.Time
	endTime    *time.Time
	duration   *int64
	status     *string
	attributes Attributes
	version    *string
	spans      []*Span
	ended      bool
}

// TraceBuilder provides a fluent interface for creating traces.
//
// TraceBuilder is NOT safe for concurrent use.
//
// Example:
//
//	trace, err := client.NewTrace().
//	    Name("chain_run").
//	    Attribute("user", "u-1").
//	    Create()
type TraceBuilder struct {
	client     *Client
	name       string
	startTime  time.Time
	status     *string
	attributes Attributes
	version    *string
}

// NewTrace starts a builder for a trace that is not bound to any client.
// Ending such a trace closes it but delivers nothing; use Payload to read it.
func NewTrace() *TraceBuilder {
	return &TraceBuilder{attributes: Attributes{}}
}

// NewTrace starts a builder for a trace delivered by c when it ends.
func (c *Client) NewTrace() *TraceBuilder {
	return &TraceBuilder{client: c, attributes: Attributes{}}
}

// Name sets the trace name.
func (b *TraceBuilder) Name(name string) *TraceBuilder {
	b.name = name
	return b
}

// StartTime sets the start time. Defaults to the time Create is called.
func (b *TraceBuilder) StartTime(t time.Time) *TraceBuilder {
	b.startTime = t
	return b
}

// Status sets the status.
func (b *TraceBuilder) Status(status string) *TraceBuilder {
	b.status = &status
	return b
}

// Attributes merges attrs into the trace's attributes.
func (b *TraceBuilder) Attributes(attrs Attributes) *TraceBuilder {
	b.attributes.merge(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *TraceBuilder) Attribute(key string, value any) *TraceBuilder {
	b.attributes[key] = value
	return b
}

// Version sets the version.
func (b *TraceBuilder) Version(version string) *TraceBuilder {
	b.version = &version
	return b
}

// Create opens the trace.
func (b *TraceBuilder) Create() (*Trace, error) {
	if b.name == "" {
		return nil, NewValidationError("name", "trace name is required")
	}
	if b.client != nil && b.client.isClosed() {
		return nil, ErrClientClosed
	}
	start := b.startTime
	if start.IsZero() {
		start = Now()
	}
	t := &Trace{
		client:     b.client,
		logger:     fallbackLogger,
		name:       b.name,
		startTime:  start.UTC(),
		status:     b.status,
		attributes: b.attributes.clone(),
		version:    b.version,
	}
	if b.client != nil {
		t.logger = b.client.logger
	}
	return t, nil
}

// NewSpan starts a builder for a top-level span of t.
func (t *Trace) NewSpan() *SpanBuilder {
	return newSpanBuilder(t, nil)
}

// NewGeneration starts a builder for a top-level generation of t.
func (t *Trace) NewGeneration() *GenerationBuilder {
	return newGenerationBuilder(t, nil)
}

// attach appends s to parent's children, or to the trace's top level when
// parent is nil.
func (t *Trace) attach(parent *Span, s *Span) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if parent == nil {
		t.spans = append(t.spans, s)
		return
	}
	parent.children = append(parent.children, s)
}

// Name returns the trace name.
func (t *Trace) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// StartTime returns the start time in UTC.
func (t *Trace) StartTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startTime
}

// EndTime returns the end time and whether it has been set.
func (t *Trace) EndTime() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.endTime == nil {
		return time.Time{}, false
	}
	return *t.endTime, true
}

// Duration returns the duration in milliseconds and whether it has been set.
func (t *Trace) Duration() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.duration == nil {
		return 0, false
	}
	return *t.duration, true
}

// Status returns the status, or "" when unset.
func (t *Trace) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == nil {
		return ""
	}
	return *t.status
}

// Attributes returns a copy of the trace's attributes.
func (t *Trace) Attributes() Attributes {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attributes.clone()
}

// Spans returns the top-level spans in creation order.
func (t *Trace) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Span(nil), t.spans...)
}

// Ended reports whether End has been called.
func (t *Trace) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// Update starts a partial update of the trace.
func (t *Trace) Update() *TraceUpdateBuilder {
	return &TraceUpdateBuilder{trace: t, attributes: Attributes{}}
}

// End closes the trace at the current time. See EndAt.
func (t *Trace) End() error {
	return t.EndAt(Now())
}

// EndAt closes the trace and every open node in its tree at at, then hands
// the serialized payload to the client's dispatcher and returns without
// waiting for delivery. Ending a trace twice returns ErrTraceEnded and
// delivers nothing.
func (t *Trace) EndAt(at time.Time) error {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		t.logger.Debug("athina: trace already ended", "trace", t.name)
		return ErrTraceEnded
	}
	t.ended = true
	at = at.UTC()
	guard(t.logger, "end trace", t.name, func() {
		if t.endTime == nil {
			if at.Before(t.startTime) {
				at = t.startTime
			}
			end := at
			t.endTime = &end
		}
		if t.duration == nil {
			d := durationMillis(t.startTime, *t.endTime)
			t.duration = &d
		}
	})
	for _, s := range t.spans {
		s.endTree(at, t.logger)
	}
	payload := t.payloadLocked()
	t.mu.Unlock()

	if t.client != nil {
		t.client.traceEnded(t, payload)
	}
	return nil
}

// Payload returns the wire form of the trace: {"trace": {..., "spans": [...]}}.
func (t *Trace) Payload() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.payloadLocked()
}

func (t *Trace) payloadLocked() map[string]any {
	body := map[string]any{
		"name":       t.name,
		"start_time": FormatTime(t.startTime),
		"attributes": sanitize(map[string]any(t.attributes)),
	}
	if t.endTime != nil {
		body["end_time"] = FormatTime(*t.endTime)
	}
	if t.duration != nil {
		body["duration"] = *t.duration
	}
	if t.status != nil {
		body["status"] = *t.status
	}
	if t.version != nil {
		body["version"] = *t.version
	}
	spans := make([]any, 0, len(t.spans))
	for _, s := range t.spans {
		if m, ok := s.payload(t.logger); ok {
			spans = append(spans, m)
		}
	}
	body["spans"] = spans
	return map[string]any{"trace": compact(body)}
}

// TraceUpdateBuilder applies a partial update to a trace.
type TraceUpdateBuilder struct {
	trace      *Trace
	endTime    *time.Time
	duration   *int64
	status     *string
	version    *string
	attributes Attributes
}

// EndTime records an end time if the trace has none yet.
func (b *TraceUpdateBuilder) EndTime(t time.Time) *TraceUpdateBuilder {
	b.endTime = &t
	return b
}

// Duration records a duration in milliseconds if the trace has none yet.
func (b *TraceUpdateBuilder) Duration(ms int64) *TraceUpdateBuilder {
	b.duration = &ms
	return b
}

// Status sets the status.
func (b *TraceUpdateBuilder) Status(status string) *TraceUpdateBuilder {
	b.status = &status
	return b
}

// Version sets the version.
func (b *TraceUpdateBuilder) Version(version string) *TraceUpdateBuilder {
	b.version = &version
	return b
}

// Attributes merges attrs into the trace's attributes.
func (b *TraceUpdateBuilder) Attributes(attrs Attributes) *TraceUpdateBuilder {
	b.attributes.merge(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *TraceUpdateBuilder) Attribute(key string, value any) *TraceUpdateBuilder {
	b.attributes[key] = value
	return b
}

// Apply writes the update to the trace.
func (b *TraceUpdateBuilder) Apply() {
	t := b.trace
	t.mu.Lock()
	defer t.mu.Unlock()
	if b.endTime != nil && t.endTime == nil {
		end := b.endTime.UTC()
		if end.Before(t.startTime) {
			end = t.startTime
		}
		t.endTime = &end
	}
	if b.duration != nil && t.duration == nil {
		d := *b.duration
		t.duration = &d
	}
	if b.status != nil {
		st := *b.status
		t.status = &st
	}
	if b.version != nil {
		v := *b.version
		t.version = &v
	}
	t.attributes.merge(b.attributes)
}
