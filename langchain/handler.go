package langchain

import (
	"context"
	"strings"
	"sync"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// TokenCounter counts tokens locally when a provider reports no usage.
// *tokencount.Counter implements it.
type TokenCounter interface {
	ChatPromptTokens(model string, messages []tokencount.Message) (int, error)
	CompletionTokens(model, response string) (int, error)
	TextTokens(model, text string) (int, error)
}

// Option configures a Handler.
type Option func(*Handler)

// WithTraceName names every trace the handler opens. By default a trace is
// named after its root run.
func WithTraceName(name string) Option {
	return func(h *Handler) { h.traceName = name }
}

// WithVersion tags the trace and every node with version.
func WithVersion(version string) Option {
	return func(h *Handler) { h.version = version }
}

// WithTokenCounter replaces the local token counter. Passing nil disables
// local counting.
func WithTokenCounter(c TokenCounter) Option {
	return func(h *Handler) { h.counter = c }
}

// WithLogger sets the logger for diagnostics. Defaults to the client's.
func WithLogger(l athina.StructuredLogger) Option {
	return func(h *Handler) { h.logger = l }
}

// modelRun remembers what an LLM run was started with, for local token
// counting at its end.
type modelRun struct {
	model    string
	chat     bool
	messages []tokencount.Message
	text     string
}

// Handler maps callback events to a trace. One Handler tracks one trace at a
// time; use a Handler per concurrent execution.
//
// A Handler is safe for concurrent use.
type Handler struct {
	client    *athina.Client
	traceName string
	version   string
	counter   TokenCounter
	logger    athina.StructuredLogger

	mu        sync.Mutex
	trace     *athina.Trace
	ownsTrace bool
	rootRunID string
	runs      map[string]*athina.Span
	models    map[string]modelRun
}

// NewHandler creates a Handler that delivers traces through client. A nil
// client produces detached traces, readable through Trace.
func NewHandler(client *athina.Client, opts ...Option) *Handler {
	h := &Handler{
		client:  client,
		counter: tokencount.Default(),
		runs:    make(map[string]*athina.Span),
		models:  make(map[string]modelRun),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		if client != nil {
			h.logger = client.Logger()
		} else {
			h.logger = athina.NopLogger{}
		}
	}
	return h
}

// Trace returns the current or most recently closed trace.
func (h *Handler) Trace() *athina.Trace {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trace
}

// Handle applies one event. It never fails: inconsistent events are logged
// and skipped.
func (h *Handler) Handle(ctx context.Context, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("athina: langchain event failed", "kind", string(ev.Kind), "run_id", ev.RunID, "panic", r)
		}
	}()

	switch ev.Kind {
	case KindStart:
		h.start(ctx, ev)
	case KindEnd:
		h.end(ev)
	case KindError:
		h.fail(ev)
	case KindAction:
		h.action(ev)
	case KindToken:
		h.logger.Debug("athina: llm new token", "run_id", ev.RunID)
	default:
		h.logger.Warn("athina: unknown langchain event kind", "kind", string(ev.Kind))
	}
}

func (h *Handler) start(ctx context.Context, ev Event) {
	// A root run always opens a fresh trace, even when its id collides with
	// a run of the stale one; openRoot clears the run index.
	var parent *athina.Span
	if ev.ParentRunID == "" {
		if !h.openRoot(ctx, ev) {
			return
		}
		parent, _ = athina.SpanFromContext(ctx)
		if h.ownsTrace {
			parent = nil
		}
	} else {
		if _, dup := h.runs[ev.RunID]; dup {
			h.logger.Warn("athina: run already started, event dropped", "run_id", ev.RunID)
			return
		}
		p, ok := h.runs[ev.ParentRunID]
		if !ok {
			h.logger.Warn("athina: parent run not found, event dropped",
				"run_id", ev.RunID, "parent_run_id", ev.ParentRunID)
			return
		}
		parent = p
	}

	name := runName(ev.Name, ev.Serialized)
	var (
		node *athina.Span
		err  error
	)
	if ev.Entity.isModel() {
		var g *athina.Generation
		g, err = h.generationBuilder(parent, name, ev).Create()
		if g != nil {
			node = g.Span
		}
	} else {
		node, err = h.spanBuilder(parent, name, ev).Create()
	}
	if err != nil {
		h.logger.Warn("athina: create node failed", "run_id", ev.RunID, "error", err)
		return
	}
	h.runs[ev.RunID] = node
}

// openRoot starts a trace for a root run. A trace that is still open is
// ended first so unrelated runs never share it.
func (h *Handler) openRoot(ctx context.Context, ev Event) bool {
	if h.trace != nil && !h.trace.Ended() {
		h.logger.Warn("athina: new root run while trace open, closing stale trace",
			"trace", h.trace.Name(), "stale_root", h.rootRunID, "run_id", ev.RunID)
		h.closeTrace()
	}
	h.reset()

	if t, ok := athina.TraceFromContext(ctx); ok && !t.Ended() {
		h.trace = t
		h.ownsTrace = false
		h.rootRunID = ev.RunID
		return true
	}

	name := h.traceName
	if name == "" {
		name = runName(ev.Name, ev.Serialized)
	}
	var b *athina.TraceBuilder
	if h.client != nil {
		b = h.client.NewTrace()
	} else {
		b = athina.NewTrace()
	}
	b.Name(name).Attributes(ev.Metadata)
	if h.version != "" {
		b.Version(h.version)
	}
	t, err := b.Create()
	if err != nil {
		h.logger.Warn("athina: open trace failed", "run_id", ev.RunID, "error", err)
		return false
	}
	h.trace = t
	h.ownsTrace = true
	h.rootRunID = ev.RunID
	return true
}

func (h *Handler) reset() {
	h.trace = nil
	h.ownsTrace = false
	h.rootRunID = ""
	h.runs = make(map[string]*athina.Span)
	h.models = make(map[string]modelRun)
}

// closeTrace ends the trace if the handler opened it. The run index is
// cleared so late events for the old runs are reported as unknown.
func (h *Handler) closeTrace() {
	t := h.trace
	owned := h.ownsTrace
	h.runs = make(map[string]*athina.Span)
	h.models = make(map[string]modelRun)
	h.rootRunID = ""
	if t != nil && owned {
		if err := t.End(); err != nil {
			h.logger.Debug("athina: end trace", "trace", t.Name(), "error", err)
		}
	}
}

func (h *Handler) spanBuilder(parent *athina.Span, name string, ev Event) *athina.SpanBuilder {
	var b *athina.SpanBuilder
	if parent != nil {
		b = parent.NewSpan()
	} else {
		b = h.trace.NewSpan()
	}
	b.Name(name)
	if attrs := joinTagsAndMetadata(ev.Tags, ev.Metadata); attrs != nil {
		b.Attributes(attrs)
	}
	switch ev.Entity {
	case EntityTool:
		b.Input(map[string]any{"input_str": ev.InputStr})
	case EntityRetriever:
		b.Input(map[string]any{"query": ev.Query})
	default:
		if ev.Inputs != nil {
			b.Input(ev.Inputs)
		}
	}
	if h.version != "" {
		b.Version(h.version)
	}
	return b
}

func (h *Handler) generationBuilder(parent *athina.Span, name string, ev Event) *athina.GenerationBuilder {
	var b *athina.GenerationBuilder
	if parent != nil {
		b = parent.NewGeneration()
	} else {
		b = h.trace.NewGeneration()
	}
	b.Name(name)

	md := ev.Metadata
	run, prompt := newModelRun(ev)
	model := run.model

	attrs := athina.Attributes{"is_chat_model": run.chat}
	f := athina.GenerationFields{
		PromptSlug:          stringField(md, "prompt_slug"),
		UserQuery:           stringField(md, "user_query"),
		SessionID:           stringField(md, "session_id"),
		CustomerID:          stringField(md, "customer_id"),
		CustomerUserID:      stringField(md, "customer_user_id"),
		ExternalReferenceID: stringField(md, "external_reference_id"),
		Environment:         stringField(md, "environment"),
	}
	if c, ok := md["global_context"].(map[string]any); ok {
		f.Context = c
	}
	if c, ok := md["custom_attributes"].(map[string]any); ok {
		f.CustomAttributes = c
	}
	if model != "" {
		f.LanguageModelID = &model
	}

	f.Prompt = prompt

	b.Attributes(attrs).Fields(f)
	if len(ev.Tags) > 0 {
		b.Attribute("tags", ev.Tags)
	}
	if h.version != "" {
		b.Version(h.version)
	}
	h.models[ev.RunID] = run
	return b
}

func (h *Handler) end(ev Event) {
	node, ok := h.runs[ev.RunID]
	if !ok {
		h.logger.Warn("athina: run not found, end event skipped", "run_id", ev.RunID)
		return
	}

	if run, isModel := h.models[ev.RunID]; isModel {
		h.endGeneration(&athina.Generation{Span: node}, run, ev.Result)
		delete(h.models, ev.RunID)
	} else {
		var output any
		switch ev.Entity {
		case EntityRetriever:
			output = documentsOutput(ev.Documents)
		default:
			output = ev.Outputs
		}
		if output != nil {
			node.Update().Output(output).Apply()
		}
	}
	node.Finish()

	if ev.RunID == h.rootRunID {
		h.closeTrace()
	}
}

// endGeneration records the response and token usage. Provider usage wins;
// otherwise tokens are counted locally, and left unset when the model is
// not recognized.
func (h *Handler) endGeneration(g *athina.Generation, run modelRun, result *LLMResult) {
	u := g.Update()
	response, text := result.response()
	if response != nil {
		u.Response(response)
	}

	if p, c, total, ok := result.usage(); ok {
		u.Fields(athina.GenerationFields{
			PromptTokens:     &p,
			CompletionTokens: &c,
			TotalTokens:      &total,
		})
	} else if p, c, ok := h.countTokens(run, text); ok {
		u.Usage(p, c)
	}
	u.Apply()
}

func (h *Handler) countTokens(run modelRun, response string) (int, int, bool) {
	return countRunTokens(h.counter, h.logger, run, response)
}

// newModelRun captures a model start event and returns the prompt payload:
// a message list for chat models, {"text": ...} for completion models.
func newModelRun(ev Event) (modelRun, any) {
	run := modelRun{model: modelName(ev.InvocationParams), chat: ev.Entity == EntityChatModel}
	if !run.chat {
		run.text = strings.Join(ev.Prompts, " ")
		return run, map[string]any{"text": run.text}
	}
	var prompt []any
	for _, batch := range ev.Messages {
		for _, m := range batch {
			prompt = append(prompt, m.asMap())
			run.messages = append(run.messages, tokencount.Message{
				Role:    m.role(),
				Content: m.Content,
				Name:    m.name(),
			})
		}
	}
	return run, prompt
}

func countRunTokens(counter TokenCounter, log athina.StructuredLogger, run modelRun, response string) (int, int, bool) {
	if counter == nil || run.model == "" {
		return 0, 0, false
	}
	var (
		prompt int
		err    error
	)
	if run.chat {
		prompt, err = counter.ChatPromptTokens(run.model, run.messages)
	} else {
		prompt, err = counter.TextTokens(run.model, run.text)
	}
	if err != nil {
		log.Debug("athina: local token count skipped", "model", run.model, "error", err)
		return 0, 0, false
	}
	completion, err := counter.CompletionTokens(run.model, response)
	if err != nil && !run.chat {
		completion, err = counter.TextTokens(run.model, response)
	}
	if err != nil {
		log.Debug("athina: local token count skipped", "model", run.model, "error", err)
		return 0, 0, false
	}
	return prompt, completion, true
}

func (h *Handler) fail(ev Event) {
	node, ok := h.runs[ev.RunID]
	if !ok {
		h.logger.Warn("athina: run not found, error event skipped", "run_id", ev.RunID)
		return
	}
	msg := "unknown error"
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	node.Update().Status(athina.StatusError).Attribute(athina.AttrStatusMessage, msg).Apply()
	node.Finish()
	delete(h.models, ev.RunID)

	if ev.RunID == h.rootRunID {
		if h.ownsTrace {
			h.trace.Update().Status(athina.StatusError).Apply()
		}
		h.closeTrace()
	}
}

func (h *Handler) action(ev Event) {
	node, ok := h.runs[ev.RunID]
	if !ok {
		h.logger.Warn("athina: run not found, agent event skipped", "run_id", ev.RunID)
		return
	}
	if ev.Outputs != nil {
		node.Update().Output(ev.Outputs).Apply()
	}
	node.Finish()
}

func modelName(params map[string]any) string {
	for _, key := range []string{"model_name", "model"} {
		if s, ok := params[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}
