// Package otelbridge replays ended athina traces as OpenTelemetry spans, so
// the same tree shows up in an existing tracing backend.
//
//	m := otelbridge.New(otel.GetTracerProvider())
//	client.OnTraceEnded(m.Record)
package otelbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/jdziat/athina-go"
)

// ScopeName is the instrumentation scope of mirrored spans.
const ScopeName = "github.com/jdziat/athina-go/otelbridge"

// Attribute keys set on every mirrored span.
const (
	KeySpanType = attribute.Key("athina.span_type")
	KeyStatus   = attribute.Key("athina.status")
	KeyInput    = attribute.Key("athina.input")
	KeyOutput   = attribute.Key("athina.output")
	prefix      = "athina.attributes."
)

// Mirror converts athina traces into OpenTelemetry spans.
type Mirror struct {
	tracer oteltrace.Tracer
	ctx    func() context.Context
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithParentContext sets the function that supplies the parent context of
// each mirrored root span. The default is context.Background.
func WithParentContext(fn func() context.Context) Option {
	return func(m *Mirror) { m.ctx = fn }
}

// New returns a Mirror emitting spans through tp.
func New(tp oteltrace.TracerProvider, opts ...Option) *Mirror {
	m := &Mirror{
		tracer: tp.Tracer(ScopeName),
		ctx:    context.Background,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Record emits t as a root span with one child span per athina span. Spans
// keep their recorded start and end times. Traces that have not ended are
// ignored.
func (m *Mirror) Record(t *athina.Trace) {
	if t == nil {
		return
	}
	end, ok := t.EndTime()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{KeyStatus.String(t.Status())}
	attrs = append(attrs, convert(t.Attributes())...)
	ctx, root := m.tracer.Start(m.ctx(), t.Name(),
		oteltrace.WithTimestamp(t.StartTime()),
		oteltrace.WithAttributes(attrs...),
	)
	setStatus(root, t.Status())

	for _, s := range t.Spans() {
		m.recordSpan(ctx, s, end)
	}
	root.End(oteltrace.WithTimestamp(end))
}

func (m *Mirror) recordSpan(ctx context.Context, s *athina.Span, fallback time.Time) {
	attrs := []attribute.KeyValue{
		KeySpanType.String(s.SpanType()),
		KeyStatus.String(s.Status()),
	}
	if v := s.Input(); v != nil {
		attrs = append(attrs, KeyInput.String(stringify(v)))
	}
	if v := s.Output(); v != nil {
		attrs = append(attrs, KeyOutput.String(stringify(v)))
	}
	attrs = append(attrs, convert(s.Attributes())...)

	kind := oteltrace.SpanKindInternal
	if s.SpanType() == athina.SpanTypeGeneration {
		kind = oteltrace.SpanKindClient
	}
	ctx, span := m.tracer.Start(ctx, s.Name(),
		oteltrace.WithTimestamp(s.StartTime()),
		oteltrace.WithAttributes(attrs...),
		oteltrace.WithSpanKind(kind),
	)
	setStatus(span, s.Status())

	end, ok := s.EndTime()
	if !ok {
		end = fallback
	}
	for _, c := range s.Children() {
		m.recordSpan(ctx, c, end)
	}
	span.End(oteltrace.WithTimestamp(end))
}

func setStatus(span oteltrace.Span, status string) {
	if status == athina.StatusError {
		span.SetStatus(codes.Error, status)
	}
}

// convert maps attribute values onto OpenTelemetry types. Values with no
// direct equivalent are JSON encoded. Keys are sorted for stable output.
func convert(attrs athina.Attributes) []attribute.KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := attribute.Key(prefix + k)
		switch v := attrs[k].(type) {
		case nil:
		case string:
			out = append(out, key.String(v))
		case bool:
			out = append(out, key.Bool(v))
		case int:
			out = append(out, key.Int(v))
		case int64:
			out = append(out, key.Int64(v))
		case float64:
			out = append(out, key.Float64(v))
		case []string:
			out = append(out, key.StringSlice(v))
		default:
			out = append(out, key.String(stringify(v)))
		}
	}
	return out
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
