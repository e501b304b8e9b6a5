package athina

import (
	"context"
	"fmt"
	"reflect"
)

// ObserveOption configures Trace, Span, Generation and their generic forms.
type ObserveOption func(*observeConfig)

type observeConfig struct {
	attributes Attributes
	version    *string
	spanType   string
	input      any
}

func newObserveConfig(opts []ObserveOption) *observeConfig {
	cfg := &observeConfig{attributes: Attributes{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// ObserveAttributes adds attributes to the node (and to any trace opened
// for it).
func ObserveAttributes(attrs Attributes) ObserveOption {
	return func(c *observeConfig) { c.attributes.merge(attrs) }
}

// ObserveVersion sets the node's version.
func ObserveVersion(version string) ObserveOption {
	return func(c *observeConfig) { c.version = &version }
}

// ObserveSpanType overrides the span type of an observed span.
func ObserveSpanType(spanType string) ObserveOption {
	return func(c *observeConfig) { c.spanType = spanType }
}

// ObserveInput records input as the node's input payload.
func ObserveInput(input any) ObserveOption {
	return func(c *observeConfig) { c.input = input }
}

// Trace runs fn inside a new trace named name. The trace ends when fn
// returns; an error marks it as failed and is returned unchanged.
func (c *Client) Trace(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...ObserveOption) error {
	_, err := ObserveTrace(ctx, c, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// Span runs fn inside a span named name. The span is a child of the current
// span in ctx, or of the current trace; with neither, a trace is opened
// for it and ended afterwards.
func (c *Client) Span(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...ObserveOption) error {
	_, err := ObserveSpan(ctx, c, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	return err
}

// Generation is Span for an LLM call. fn receives the generation so it can
// record the prompt, response and usage.
func (c *Client) Generation(ctx context.Context, name string, fn func(ctx context.Context, g *Generation) error, opts ...ObserveOption) error {
	_, err := ObserveGeneration(ctx, c, name, func(ctx context.Context, g *Generation) (struct{}, error) {
		return struct{}{}, fn(ctx, g)
	}, opts...)
	return err
}

// ObserveTrace runs fn inside a new trace and records its result under the
// "function_output" attribute. A nil client produces a detached trace.
//
//	answer, err := athina.ObserveTrace(ctx, client, "answer", func(ctx context.Context) (string, error) {
//	    return pipeline.Run(ctx, question)
//	}, athina.ObserveInput(question))
func ObserveTrace[T any](ctx context.Context, c *Client, name string, fn func(ctx context.Context) (T, error), opts ...ObserveOption) (result T, err error) {
	cfg := newObserveConfig(opts)
	b := traceBuilderFor(c).Name(name).Attributes(cfg.attributes)
	if cfg.version != nil {
		b.Version(*cfg.version)
	}
	if cfg.input != nil {
		b.Attribute("function_input", cfg.input)
	}
	t, err := createObservedTrace(c, b)
	if err != nil {
		return result, err
	}

	defer func() {
		if r := recover(); r != nil {
			t.Update().Status(StatusError).Attribute(AttrError, fmt.Sprint(r)).Apply()
			t.End()
			panic(r)
		}
	}()

	result, err = fn(ContextWithTrace(ctx, t))
	switch {
	case err != nil:
		t.Update().Status(StatusError).Attribute(AttrError, err.Error()).Apply()
	case !isNil(result):
		t.Update().Attribute("function_output", result).Apply()
	}
	t.End()
	return result, err
}

// ObserveSpan runs fn inside a span and records its result as
// {"result": value} output.
func ObserveSpan[T any](ctx context.Context, c *Client, name string, fn func(ctx context.Context) (T, error), opts ...ObserveOption) (T, error) {
	return observeNode(ctx, c, name, opts, false, func(ctx context.Context, _ *Generation) (T, error) {
		return fn(ctx)
	})
}

// ObserveGeneration runs fn inside a generation and records its result as
// {"result": value} output.
func ObserveGeneration[T any](ctx context.Context, c *Client, name string, fn func(ctx context.Context, g *Generation) (T, error), opts ...ObserveOption) (T, error) {
	return observeNode(ctx, c, name, opts, true, fn)
}

func observeNode[T any](ctx context.Context, c *Client, name string, opts []ObserveOption, generation bool, fn func(context.Context, *Generation) (T, error)) (result T, err error) {
	cfg := newObserveConfig(opts)

	sc := scopeFromContext(ctx)
	t := sc.trace
	owned := false
	if t == nil || t.Ended() {
		t, err = createObservedTrace(c, traceBuilderFor(c).Name(name).Attributes(cfg.attributes))
		if err != nil {
			return result, err
		}
		owned = true
		sc = scope{trace: t}
	}

	var node *Span
	var gen *Generation
	if generation {
		b := newGenerationBuilder(t, sc.span).Name(name).Attributes(cfg.attributes).Input(cfg.input)
		if cfg.version != nil {
			b.Version(*cfg.version)
		}
		gen, err = b.Create()
		if gen != nil {
			node = gen.Span
		}
	} else {
		b := newSpanBuilder(t, sc.span).Name(name).Attributes(cfg.attributes).Input(cfg.input)
		if cfg.spanType != "" {
			b.SpanType(cfg.spanType)
		}
		if cfg.version != nil {
			b.Version(*cfg.version)
		}
		node, err = b.Create()
	}
	if err != nil {
		if owned {
			t.End()
		}
		return result, err
	}
	if gen == nil {
		gen = &Generation{Span: node}
	}

	finish := func() {
		node.End()
		if owned {
			t.End()
		}
	}
	defer func() {
		if r := recover(); r != nil {
			node.Update().Status(StatusError).Attribute(AttrError, fmt.Sprint(r)).Apply()
			finish()
			panic(r)
		}
	}()

	result, err = fn(ContextWithSpan(ctx, node), gen)
	switch {
	case err != nil:
		node.Update().Status(StatusError).Attribute(AttrError, err.Error()).Apply()
	case !isNil(result):
		node.Update().Output(map[string]any{"result": result}).Apply()
	}
	finish()
	return result, err
}

// createObservedTrace opens the trace for an observed call. Only caller
// misuse is returned; when the client cannot take the trace (for example
// after Shutdown) the call proceeds under a detached trace instead.
func createObservedTrace(c *Client, b *TraceBuilder) (*Trace, error) {
	t, err := b.Create()
	if err == nil {
		return t, nil
	}
	if _, invalid := AsValidationError(err); invalid || c == nil {
		return nil, err
	}
	c.Logger().Warn("athina: trace not recorded", "trace", b.name, "error", err)
	b.client = nil
	return b.Create()
}

func traceBuilderFor(c *Client) *TraceBuilder {
	if c == nil {
		return NewTrace()
	}
	return c.NewTrace()
}

// isNil reports whether v is nil, a nil pointer/map/slice, or struct{}.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	if _, ok := v.(struct{}); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
