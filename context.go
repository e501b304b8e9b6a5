package athina

import "context"

// scopeKey is the context key for the current trace and span.
type scopeKey struct{}

// scope is what the context carries: the open trace and, optionally, the
// innermost open span of that trace.
type scope struct {
	trace *Trace
	span  *Span
}

func scopeFromContext(ctx context.Context) scope {
	sc, _ := ctx.Value(scopeKey{}).(scope)
	return sc
}

// ContextWithTrace returns a copy of ctx carrying t as the current trace.
// Any current span is cleared, since it belongs to a different trace.
//
//	trace, _ := client.NewTrace().Name("request").Create()
//	ctx = athina.ContextWithTrace(ctx, trace)
//	handle(ctx) // athina.TraceFromContext(ctx) returns trace
func ContextWithTrace(ctx context.Context, t *Trace) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{trace: t})
}

// TraceFromContext returns the current trace, if any.
func TraceFromContext(ctx context.Context) (*Trace, bool) {
	sc := scopeFromContext(ctx)
	return sc.trace, sc.trace != nil
}

// ContextWithSpan returns a copy of ctx carrying s as the current span and
// s's trace as the current trace.
func ContextWithSpan(ctx context.Context, s *Span) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{trace: s.trace, span: s})
}

// SpanFromContext returns the innermost current span, if any.
func SpanFromContext(ctx context.Context) (*Span, bool) {
	sc := scopeFromContext(ctx)
	return sc.span, sc.span != nil
}

// StartTrace returns the trace already carried by ctx, or opens a new one
// named name and returns a context carrying it. Only the caller that opened
// the trace should end it; created reports whether that is this caller.
func (c *Client) StartTrace(ctx context.Context, name string) (_ context.Context, t *Trace, created bool, err error) {
	if existing, ok := TraceFromContext(ctx); ok && !existing.Ended() {
		return ctx, existing, false, nil
	}
	t, err = c.NewTrace().Name(name).Create()
	if err != nil {
		return ctx, nil, false, err
	}
	return ContextWithTrace(ctx, t), t, true, nil
}
