package athina

import (
	"fmt"
	"time"
)

// Span is a timed unit of work inside a Trace. Spans nest: each span owns an
// ordered list of child spans and generations.
//
// A Span is safe for concurrent use. All nodes of one trace share the
// trace's lock, so mutations anywhere in the tree are serialized.
type Span struct {
	trace *Trace

	name       string
	spanType   string
	startTime  time.Time
	endTime    *time.Time
	duration   *int64
	status     *string
	attributes Attributes
	input      any
	output     any
	version    *string
	children   []*Span
}

// nodeFields holds the settable fields shared by span and generation builders.
type nodeFields struct {
	name       string
	spanType   string
	startTime  time.Time
	endTime    *time.Time
	duration   *int64
	status     *string
	attributes Attributes
	input      any
	output     any
	version    *string
}

func (f *nodeFields) build(t *Trace) *Span {
	start := f.startTime
	if start.IsZero() {
		start = Now()
	}
	attrs := f.attributes.clone()
	s := &Span{
		trace:      t,
		name:       f.name,
		spanType:   f.spanType,
		startTime:  start.UTC(),
		duration:   f.duration,
		status:     f.status,
		attributes: attrs,
		input:      f.input,
		output:     f.output,
		version:    f.version,
	}
	if f.endTime != nil {
		s.setEnd(*f.endTime)
	}
	return s
}

// SpanBuilder provides a fluent interface for creating spans.
//
// SpanBuilder is NOT safe for concurrent use.
//
// Example:
//
//	span, err := trace.NewSpan().
//	    Name("tool_call").
//	    Input(map[string]any{"query": q}).
//	    Create()
type SpanBuilder struct {
	trace  *Trace
	parent *Span
	fields nodeFields
}

func newSpanBuilder(t *Trace, parent *Span) *SpanBuilder {
	return &SpanBuilder{
		trace:  t,
		parent: parent,
		fields: nodeFields{spanType: SpanTypeSpan, attributes: Attributes{}},
	}
}

// Name sets the span name.
func (b *SpanBuilder) Name(name string) *SpanBuilder {
	b.fields.name = name
	return b
}

// SpanType overrides the span type, "span" by default.
func (b *SpanBuilder) SpanType(spanType string) *SpanBuilder {
	b.fields.spanType = spanType
	return b
}

// StartTime sets the start time. Defaults to the time Create is called.
func (b *SpanBuilder) StartTime(t time.Time) *SpanBuilder {
	b.fields.startTime = t
	return b
}

// EndTime sets the end time up front.
func (b *SpanBuilder) EndTime(t time.Time) *SpanBuilder {
	b.fields.endTime = &t
	return b
}

// Duration sets the duration in milliseconds up front.
func (b *SpanBuilder) Duration(ms int64) *SpanBuilder {
	b.fields.duration = &ms
	return b
}

// Status sets the status.
func (b *SpanBuilder) Status(status string) *SpanBuilder {
	b.fields.status = &status
	return b
}

// Attributes merges attrs into the span's attributes.
func (b *SpanBuilder) Attributes(attrs Attributes) *SpanBuilder {
	b.fields.attributes.merge(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *SpanBuilder) Attribute(key string, value any) *SpanBuilder {
	b.fields.attributes[key] = value
	return b
}

// Input sets the input payload.
func (b *SpanBuilder) Input(input any) *SpanBuilder {
	b.fields.input = input
	return b
}

// Output sets the output payload.
func (b *SpanBuilder) Output(output any) *SpanBuilder {
	b.fields.output = output
	return b
}

// Version sets the version.
func (b *SpanBuilder) Version(version string) *SpanBuilder {
	b.fields.version = &version
	return b
}

// Create appends the span as the last child of its parent and returns it.
func (b *SpanBuilder) Create() (*Span, error) {
	if b.fields.name == "" {
		return nil, NewValidationError("name", "span name is required")
	}
	s := b.fields.build(b.trace)
	b.trace.attach(b.parent, s)
	return s, nil
}

// NewSpan starts a builder for a child span of s.
func (s *Span) NewSpan() *SpanBuilder {
	return newSpanBuilder(s.trace, s)
}

// NewGeneration starts a builder for a child generation of s.
func (s *Span) NewGeneration() *GenerationBuilder {
	return newGenerationBuilder(s.trace, s)
}

// Trace returns the trace the span belongs to.
func (s *Span) Trace() *Trace {
	return s.trace
}

// Name returns the span name.
func (s *Span) Name() string {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.name
}

// SpanType returns "span", "generation" or a caller-supplied type.
func (s *Span) SpanType() string {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.spanType
}

// StartTime returns the start time in UTC.
func (s *Span) StartTime() time.Time {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.startTime
}

// EndTime returns the end time and whether it has been set.
func (s *Span) EndTime() (time.Time, bool) {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	if s.endTime == nil {
		return time.Time{}, false
	}
	return *s.endTime, true
}

// Duration returns the duration in milliseconds and whether it has been set.
func (s *Span) Duration() (int64, bool) {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	if s.duration == nil {
		return 0, false
	}
	return *s.duration, true
}

// Status returns the status, or "" when unset.
func (s *Span) Status() string {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	if s.status == nil {
		return ""
	}
	return *s.status
}

// Attributes returns a copy of the span's attributes.
func (s *Span) Attributes() Attributes {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.attributes.clone()
}

// Input returns the input payload.
func (s *Span) Input() any {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.input
}

// Output returns the output payload.
func (s *Span) Output() any {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return s.output
}

// Children returns the span's direct children in creation order.
func (s *Span) Children() []*Span {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Ended reports whether an end time has been recorded.
func (s *Span) Ended() bool {
	_, ok := s.EndTime()
	return ok
}

// Update starts a partial update of the span.
func (s *Span) Update() *SpanUpdateBuilder {
	return &SpanUpdateBuilder{span: s, attributes: Attributes{}}
}

// End closes the span and every open descendant at the current time.
func (s *Span) End() {
	s.EndAt(Now())
}

// EndAt closes the span and every open descendant at t. Fields that are
// already set keep their values, so calling it again is a no-op.
func (s *Span) EndAt(t time.Time) {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	s.endTree(t.UTC(), s.trace.logger)
}

// Finish closes only this span, leaving its children untouched.
func (s *Span) Finish() {
	s.FinishAt(Now())
}

// FinishAt closes only this span at t.
func (s *Span) FinishAt(t time.Time) {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	s.endSelf(t.UTC())
}

// Payload returns the span serialized as a nested map with unset fields
// omitted.
func (s *Span) Payload() map[string]any {
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	m, _ := s.payload(s.trace.logger)
	return m
}

// setEnd records the end time, clamped so it never precedes the start.
// Caller must hold the trace lock.
func (s *Span) setEnd(t time.Time) {
	if t.Before(s.startTime) {
		t = s.startTime
	}
	t = t.UTC()
	s.endTime = &t
}

// endSelf fills end time and duration when unset. Caller must hold the
// trace lock.
func (s *Span) endSelf(t time.Time) {
	if s.endTime == nil {
		s.setEnd(t)
	}
	if s.duration == nil {
		d := durationMillis(s.startTime, *s.endTime)
		s.duration = &d
	}
}

// endTree ends s and then recurses into every child. A failure in one node
// is logged and does not stop the rest of the tree from closing.
func (s *Span) endTree(t time.Time, log StructuredLogger) {
	guard(log, "end span", s.name, func() { s.endSelf(t) })
	for _, c := range s.children {
		c.endTree(t, log)
	}
}

// payload serializes s and its children. Caller must hold the trace lock.
func (s *Span) payload(log StructuredLogger) (map[string]any, bool) {
	var out map[string]any
	ok := guard(log, "serialize span", s.name, func() {
		out = map[string]any{
			"name":       s.name,
			"span_type":  s.spanType,
			"start_time": FormatTime(s.startTime),
			"attributes": sanitize(map[string]any(s.attributes)),
			"input":      sanitize(s.input),
			"output":     sanitize(s.output),
		}
		if s.endTime != nil {
			out["end_time"] = FormatTime(*s.endTime)
		}
		if s.duration != nil {
			out["duration"] = *s.duration
		}
		if s.status != nil {
			out["status"] = *s.status
		}
		if s.version != nil {
			out["version"] = *s.version
		}
	})
	if !ok {
		return nil, false
	}
	children := make([]any, 0, len(s.children))
	for _, c := range s.children {
		if cm, ok := c.payload(log); ok {
			children = append(children, cm)
		}
	}
	out["children"] = children
	return compact(out), true
}

// guard runs fn and converts a panic into a logged failure.
func guard(log StructuredLogger, op, name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			if log != nil {
				log.Error("athina: "+op+" failed", "name", name, "panic", fmt.Sprint(r))
			}
		}
	}()
	fn()
	return true
}

// SpanUpdateBuilder applies a partial update to a span. Only the fields
// that are set on the builder change; attributes are merged.
type SpanUpdateBuilder struct {
	span       *Span
	endTime    *time.Time
	duration   *int64
	status     *string
	input      any
	output     any
	attributes Attributes
}

// EndTime records an end time if the span has none yet.
func (b *SpanUpdateBuilder) EndTime(t time.Time) *SpanUpdateBuilder {
	b.endTime = &t
	return b
}

// Duration records a duration in milliseconds if the span has none yet.
func (b *SpanUpdateBuilder) Duration(ms int64) *SpanUpdateBuilder {
	b.duration = &ms
	return b
}

// Status sets the status.
func (b *SpanUpdateBuilder) Status(status string) *SpanUpdateBuilder {
	b.status = &status
	return b
}

// Input replaces the input payload.
func (b *SpanUpdateBuilder) Input(input any) *SpanUpdateBuilder {
	b.input = input
	return b
}

// Output replaces the output payload.
func (b *SpanUpdateBuilder) Output(output any) *SpanUpdateBuilder {
	b.output = output
	return b
}

// Attributes merges attrs into the span's attributes.
func (b *SpanUpdateBuilder) Attributes(attrs Attributes) *SpanUpdateBuilder {
	b.attributes.merge(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *SpanUpdateBuilder) Attribute(key string, value any) *SpanUpdateBuilder {
	b.attributes[key] = value
	return b
}

// Apply writes the update to the span.
func (b *SpanUpdateBuilder) Apply() {
	s := b.span
	s.trace.mu.Lock()
	defer s.trace.mu.Unlock()
	b.applyLocked()
}

func (b *SpanUpdateBuilder) applyLocked() {
	s := b.span
	if b.endTime != nil && s.endTime == nil {
		s.setEnd(*b.endTime)
	}
	if b.duration != nil && s.duration == nil {
		d := *b.duration
		s.duration = &d
	}
	if b.status != nil {
		st := *b.status
		s.status = &st
	}
	if b.input != nil {
		s.input = b.input
	}
	if b.output != nil {
		s.output = b.output
	}
	s.attributes.merge(b.attributes)
}
