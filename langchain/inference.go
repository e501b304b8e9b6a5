package langchain

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// InferenceMeta is attached to every inference an InferenceHandler logs.
type InferenceMeta struct {
	UserQuery           string
	Environment         string
	SessionID           string
	CustomerID          string
	CustomerUserID      string
	ExternalReferenceID string
	// Context is sent as the inference context. Retrieved documents are
	// added to it under "documents".
	Context map[string]any
}

// InferenceOption configures an InferenceHandler.
type InferenceOption func(*InferenceHandler)

// WithInferenceMeta sets the metadata logged with every inference.
func WithInferenceMeta(meta InferenceMeta) InferenceOption {
	return func(h *InferenceHandler) { h.meta = meta }
}

// WithInferenceTokenCounter replaces the local token counter. Passing nil
// leaves token fields unset when the provider reports no usage.
func WithInferenceTokenCounter(c TokenCounter) InferenceOption {
	return func(h *InferenceHandler) { h.counter = c }
}

// WithInferenceLogger sets the logger for diagnostics. Defaults to the
// client's.
func WithInferenceLogger(l athina.StructuredLogger) InferenceOption {
	return func(h *InferenceHandler) { h.logger = l }
}

type inferenceRun struct {
	modelRun
	prompt  any
	started time.Time
}

// InferenceHandler logs every LLM and chat model run as a standalone
// inference instead of building a trace. Chains, tools and agents are
// ignored; retrieved documents are folded into the context of later
// inferences.
//
//	h := langchain.NewInferenceHandler(client, "support-answer",
//	    langchain.WithInferenceMeta(langchain.InferenceMeta{SessionID: sid}))
//
// An InferenceHandler is safe for concurrent use.
type InferenceHandler struct {
	client     *athina.Client
	promptSlug string
	meta       InferenceMeta
	counter    TokenCounter
	logger     athina.StructuredLogger

	mu        sync.Mutex
	documents string
	runs      map[string]inferenceRun
}

// NewInferenceHandler creates an InferenceHandler logging under promptSlug.
func NewInferenceHandler(client *athina.Client, promptSlug string, opts ...InferenceOption) *InferenceHandler {
	h := &InferenceHandler{
		client:     client,
		promptSlug: promptSlug,
		counter:    tokencount.Default(),
		runs:       make(map[string]inferenceRun),
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

// Handle applies one event. Only model and retriever events are used.
func (h *InferenceHandler) Handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("athina: langchain inference event failed", "kind", string(ev.Kind), "run_id", ev.RunID, "panic", r)
		}
	}()

	switch {
	case ev.Entity.isModel() && ev.Kind == KindStart:
		run, prompt := newModelRun(ev)
		h.mu.Lock()
		h.runs[ev.RunID] = inferenceRun{modelRun: run, prompt: prompt, started: time.Now()}
		h.mu.Unlock()
	case ev.Entity.isModel() && ev.Kind == KindEnd:
		h.mu.Lock()
		run, ok := h.runs[ev.RunID]
		delete(h.runs, ev.RunID)
		documents := h.documents
		h.mu.Unlock()
		if !ok {
			h.logger.Warn("athina: run not found, inference not logged", "run_id", ev.RunID)
			return
		}
		h.log(ctx, run, documents, ev.Result)
	case ev.Entity.isModel() && ev.Kind == KindError:
		h.mu.Lock()
		delete(h.runs, ev.RunID)
		h.mu.Unlock()
	case ev.Entity == EntityRetriever && ev.Kind == KindEnd:
		var b strings.Builder
		for _, d := range ev.Documents {
			b.WriteString(d.PageContent)
			b.WriteByte('\n')
		}
		h.mu.Lock()
		h.documents = b.String()
		h.mu.Unlock()
	}
}

func (h *InferenceHandler) log(ctx context.Context, run inferenceRun, documents string, result *LLMResult) {
	if h.client == nil {
		return
	}
	_, text := result.response()
	in := &athina.Inference{
		LanguageModelID:     run.model,
		Prompt:              run.prompt,
		Response:            text,
		PromptSlug:          optional(h.promptSlug),
		Environment:         h.meta.Environment,
		UserQuery:           optional(h.meta.UserQuery),
		SessionID:           optional(h.meta.SessionID),
		CustomerID:          optional(h.meta.CustomerID),
		CustomerUserID:      optional(h.meta.CustomerUserID),
		ExternalReferenceID: optional(h.meta.ExternalReferenceID),
		ResponseTime:        athina.Int64(time.Since(run.started).Milliseconds()),
	}
	if h.meta.Context != nil || documents != "" {
		in.Context = make(map[string]any, len(h.meta.Context)+1)
		for k, v := range h.meta.Context {
			in.Context[k] = v
		}
		if documents != "" {
			in.Context["documents"] = documents
		}
	}
	if p, c, total, ok := result.usage(); ok {
		in.PromptTokens, in.CompletionTokens, in.TotalTokens = &p, &c, &total
	} else if p, c, ok := countRunTokens(h.counter, h.logger, run.modelRun, text); ok {
		total := p + c
		in.PromptTokens, in.CompletionTokens, in.TotalTokens = &p, &c, &total
	}

	if err := h.client.LogInference(context.WithoutCancel(ctx), in); err != nil {
		h.logger.Warn("athina: langchain inference not logged", "model", run.model, "error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// OnLLMStart records the start of a completion model run.
func (h *InferenceHandler) OnLLMStart(ctx context.Context, serialized map[string]any, prompts []string, run, parent uuid.UUID, tags []string, metadata, invocationParams map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityLLM, RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Prompts: prompts, InvocationParams: invocationParams,
	})
}

// OnChatModelStart records the start of a chat model run.
func (h *InferenceHandler) OnChatModelStart(ctx context.Context, serialized map[string]any, messages [][]Message, run, parent uuid.UUID, tags []string, metadata, invocationParams map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityChatModel, RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Messages: messages, InvocationParams: invocationParams,
	})
}

// OnLLMEnd logs the run as an inference.
func (h *InferenceHandler) OnLLMEnd(ctx context.Context, result *LLMResult, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityLLM, RunID: runID(run), Result: result})
}

// OnLLMError forgets a failed run; nothing is logged for it.
func (h *InferenceHandler) OnLLMError(ctx context.Context, err error, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindError, Entity: EntityLLM, RunID: runID(run), Err: err})
}

// OnRetrieverEnd adds the documents' page content to the context of the
// inferences logged after it.
func (h *InferenceHandler) OnRetrieverEnd(ctx context.Context, documents []Document, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityRetriever, RunID: runID(run), Documents: documents})
}
