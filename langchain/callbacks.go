package langchain

import (
	"context"

	"github.com/google/uuid"
)

// The On* methods mirror LangChain's callback handler surface. A parent of
// uuid.Nil marks a root run.

func runID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// OnChainStart records the start of a chain run.
func (h *Handler) OnChainStart(ctx context.Context, serialized, inputs map[string]any, run, parent uuid.UUID, tags []string, metadata map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityChain,
		RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Inputs: inputs, Tags: tags, Metadata: metadata,
	})
}

// OnChainEnd records a chain's outputs and closes its run. Ending the root
// chain ends the trace.
func (h *Handler) OnChainEnd(ctx context.Context, outputs map[string]any, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityChain, RunID: runID(run), Outputs: outputs})
}

// OnChainError marks a chain run as failed and closes it.
func (h *Handler) OnChainError(ctx context.Context, err error, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindError, Entity: EntityChain, RunID: runID(run), Err: err})
}

// OnLLMStart records the start of a completion model run.
func (h *Handler) OnLLMStart(ctx context.Context, serialized map[string]any, prompts []string, run, parent uuid.UUID, tags []string, metadata, invocationParams map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityLLM,
		RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Prompts: prompts, Tags: tags, Metadata: metadata,
		InvocationParams: invocationParams,
	})
}

// OnChatModelStart records the start of a chat model run.
func (h *Handler) OnChatModelStart(ctx context.Context, serialized map[string]any, messages [][]Message, run, parent uuid.UUID, tags []string, metadata, invocationParams map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityChatModel,
		RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Messages: messages, Tags: tags, Metadata: metadata,
		InvocationParams: invocationParams,
	})
}

// OnLLMNewToken is called for each streamed token. It only logs.
func (h *Handler) OnLLMNewToken(ctx context.Context, token string, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindToken, Entity: EntityLLM, RunID: runID(run), Token: token})
}

// OnLLMEnd records the model response and token usage.
func (h *Handler) OnLLMEnd(ctx context.Context, result *LLMResult, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityLLM, RunID: runID(run), Result: result})
}

// OnLLMError marks a model run as failed.
func (h *Handler) OnLLMError(ctx context.Context, err error, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindError, Entity: EntityLLM, RunID: runID(run), Err: err})
}

// OnToolStart records the start of a tool run.
func (h *Handler) OnToolStart(ctx context.Context, serialized map[string]any, input string, run, parent uuid.UUID, tags []string, metadata map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityTool,
		RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, InputStr: input, Tags: tags, Metadata: metadata,
	})
}

// OnToolEnd records a tool's output.
func (h *Handler) OnToolEnd(ctx context.Context, output string, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityTool, RunID: runID(run), Outputs: output})
}

// OnToolError marks a tool run as failed.
func (h *Handler) OnToolError(ctx context.Context, err error, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindError, Entity: EntityTool, RunID: runID(run), Err: err})
}

// OnRetrieverStart records the start of a retriever run.
func (h *Handler) OnRetrieverStart(ctx context.Context, serialized map[string]any, query string, run, parent uuid.UUID, tags []string, metadata map[string]any) {
	h.Handle(ctx, Event{
		Kind: KindStart, Entity: EntityRetriever,
		RunID: runID(run), ParentRunID: runID(parent),
		Serialized: serialized, Query: query, Tags: tags, Metadata: metadata,
	})
}

// OnRetrieverEnd records the retrieved documents.
func (h *Handler) OnRetrieverEnd(ctx context.Context, documents []Document, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindEnd, Entity: EntityRetriever, RunID: runID(run), Documents: documents})
}

// OnRetrieverError marks a retriever run as failed.
func (h *Handler) OnRetrieverError(ctx context.Context, err error, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindError, Entity: EntityRetriever, RunID: runID(run), Err: err})
}

// OnAgentAction records an agent's chosen action on the agent's run.
func (h *Handler) OnAgentAction(ctx context.Context, action any, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindAction, Entity: EntityAgent, RunID: runID(run), Outputs: action})
}

// OnAgentFinish records an agent's final answer on the agent's run.
func (h *Handler) OnAgentFinish(ctx context.Context, finish any, run uuid.UUID) {
	h.Handle(ctx, Event{Kind: KindAction, Entity: EntityAgent, RunID: runID(run), Outputs: finish})
}
