package langchain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/athinatest"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// fakeCounter charges ten tokens per message and one per response byte.
type fakeCounter struct {
	err error
}

func (f fakeCounter) ChatPromptTokens(model string, messages []tokencount.Message) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 10 * len(messages), nil
}

func (f fakeCounter) CompletionTokens(model, response string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(response), nil
}

func (f fakeCounter) TextTokens(model, text string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(text), nil
}

func named(name string) map[string]any {
	return map[string]any{"name": name}
}

func childNames(spans []*athina.Span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.Name()
	}
	return out
}

func TestHandler_TreeMatchesParentLinks(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(nil))

	root, a, b, llm, tool, ret := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()

	h.OnChainStart(ctx, named("root"), map[string]any{"q": "hi"}, root, uuid.Nil, nil, nil)
	h.OnChainStart(ctx, named("a"), nil, a, root, nil, nil)
	h.OnChainStart(ctx, named("b"), nil, b, root, nil, nil)
	h.OnLLMStart(ctx, named("llm"), []string{"p"}, llm, a, nil, nil, map[string]any{"model_name": "gpt-4"})
	h.OnToolStart(ctx, named("tool"), "x", tool, b, nil, nil)
	h.OnRetrieverStart(ctx, named("ret"), "query", ret, a, nil, nil)

	h.OnToolEnd(ctx, "done", tool)
	h.OnLLMEnd(ctx, &LLMResult{Generations: [][]Generation{{{Text: "answer"}}}}, llm)
	h.OnRetrieverEnd(ctx, nil, ret)

	trace := h.Trace()
	require.NotNil(t, trace)

	top := trace.Spans()
	require.Equal(t, []string{"root"}, childNames(top))

	rootChildren := top[0].Children()
	require.Equal(t, []string{"a", "b"}, childNames(rootChildren))
	assert.Equal(t, []string{"llm", "ret"}, childNames(rootChildren[0].Children()))
	assert.Equal(t, []string{"tool"}, childNames(rootChildren[1].Children()))
	assert.Equal(t, athina.SpanTypeGeneration, rootChildren[0].Children()[0].SpanType())

	h.OnChainEnd(ctx, map[string]any{"answer": "42"}, root)
	assert.True(t, trace.Ended())
	for _, s := range append(rootChildren, rootChildren[0].Children()...) {
		assert.True(t, s.Ended(), "span %s should be closed by the trace", s.Name())
	}
}

func TestHandler_LocalTokenCounting(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(fakeCounter{}))

	root, llm := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnChatModelStart(ctx, named("ChatOpenAI"),
		[][]Message{{{Type: "human", Content: "hi"}}},
		llm, root, nil, nil, map[string]any{"model": "gpt-4"})
	h.OnLLMEnd(ctx, &LLMResult{
		Generations: [][]Generation{{{Message: &Message{Type: "ai", Content: "hello"}}}},
	}, llm)

	gen := h.Trace().Spans()[0].Children()[0]
	attrs := gen.Attributes()

	assert.Equal(t, 10, attrs[athina.AttrPromptTokens])
	assert.Equal(t, 5, attrs[athina.AttrCompletionTokens])
	assert.Equal(t, 15, attrs[athina.AttrTotalTokens])
	assert.Equal(t, "gpt-4", attrs[athina.AttrLanguageModelID])
	assert.Equal(t, true, attrs["is_chat_model"])
	assert.Equal(t, []any{map[string]any{"role": "user", "content": "hi"}}, attrs[athina.AttrPrompt])
	assert.Equal(t, map[string]any{"role": "assistant", "content": "hello"}, attrs[athina.AttrResponse])
}

func TestHandler_LocalTokenCountingWithTiktoken(t *testing.T) {
	counter := tokencount.New()
	want, err := counter.ChatPromptTokens("gpt-4", []tokencount.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}

	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(counter))
	llm := uuid.New()
	h.OnChatModelStart(ctx, named("ChatOpenAI"), [][]Message{{{Type: "human", Content: "hi"}}},
		llm, uuid.Nil, nil, nil, map[string]any{"model_name": "gpt-4"})
	h.OnLLMEnd(ctx, &LLMResult{Generations: [][]Generation{{{Message: &Message{Type: "ai", Content: "hello there"}}}}}, llm)

	attrs := h.Trace().Spans()[0].Attributes()
	assert.Equal(t, want, attrs[athina.AttrPromptTokens])
	completion, ok := attrs[athina.AttrCompletionTokens].(int)
	require.True(t, ok)
	assert.Positive(t, completion)
	assert.Equal(t, want+completion, attrs[athina.AttrTotalTokens])
	assert.True(t, h.Trace().Ended(), "a root model run closes its own trace")
}

func TestHandler_ProviderUsageWins(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(fakeCounter{}))

	root, llm := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnLLMStart(ctx, named("OpenAI"), []string{"a", "b"}, llm, root, nil, nil, map[string]any{"model_name": "text-davinci-003"})
	h.OnLLMEnd(ctx, &LLMResult{
		Generations: [][]Generation{{{Text: "  out  "}}},
		LLMOutput: map[string]any{"token_usage": map[string]any{
			"prompt_tokens": float64(7), "completion_tokens": float64(3), "total_tokens": float64(10),
		}},
	}, llm)

	attrs := h.Trace().Spans()[0].Children()[0].Attributes()
	assert.Equal(t, 7, attrs[athina.AttrPromptTokens])
	assert.Equal(t, 3, attrs[athina.AttrCompletionTokens])
	assert.Equal(t, 10, attrs[athina.AttrTotalTokens])
	assert.Equal(t, "out", attrs[athina.AttrResponse])
	assert.Equal(t, map[string]any{"text": "a b"}, attrs[athina.AttrPrompt])
	assert.Equal(t, false, attrs["is_chat_model"])
}

func TestHandler_UnknownModelLeavesTokensUnset(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(fakeCounter{err: tokencount.ErrUnsupportedModel}))

	root, llm := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnLLMStart(ctx, named("llama"), []string{"p"}, llm, root, nil, nil, map[string]any{"model": "llama-2"})
	h.OnLLMEnd(ctx, &LLMResult{Generations: [][]Generation{{{Text: "r"}}}}, llm)

	attrs := h.Trace().Spans()[0].Children()[0].Attributes()
	assert.NotContains(t, attrs, athina.AttrPromptTokens)
	assert.NotContains(t, attrs, athina.AttrCompletionTokens)
	assert.NotContains(t, attrs, athina.AttrTotalTokens)
	assert.Equal(t, "r", attrs[athina.AttrResponse])
}

func TestHandler_UnknownRunEndIsSkipped(t *testing.T) {
	ctx := context.Background()
	logger := athinatest.NewMockLogger()
	client, rec := athinatest.NewRecordingClient(t)
	h := NewHandler(client, WithLogger(logger))

	root := uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	assert.NotPanics(t, func() {
		h.OnToolEnd(ctx, "orphan", uuid.New())
		h.OnLLMError(ctx, errors.New("boom"), uuid.New())
	})
	h.OnChainEnd(ctx, map[string]any{"ok": true}, root)

	require.NoError(t, client.Flush(ctx))
	traces := rec.Traces()
	require.Len(t, traces, 1)
	assert.Equal(t, "chain", traces[0]["name"])
	assert.Len(t, logger.EntriesAt("WARN"), 2)
}

func TestHandler_UnknownParentIsDropped(t *testing.T) {
	ctx := context.Background()
	logger := athinatest.NewMockLogger()
	h := NewHandler(nil, WithLogger(logger))

	root, orphan := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnToolStart(ctx, named("tool"), "x", orphan, uuid.New(), nil, nil)
	h.OnToolEnd(ctx, "y", orphan)

	assert.Empty(t, h.Trace().Spans()[0].Children())
	assert.Len(t, logger.EntriesAt("WARN"), 2, "drop on start and skip on end")
}

func TestHandler_NewRootClosesStaleTrace(t *testing.T) {
	ctx := context.Background()
	client, rec := athinatest.NewRecordingClient(t, athina.WithWorkers(1))
	h := NewHandler(client, WithTokenCounter(nil))

	first, second := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("first"), nil, first, uuid.Nil, nil, nil)
	stale := h.Trace()
	h.OnChainStart(ctx, named("second"), nil, second, uuid.Nil, nil, nil)

	assert.True(t, stale.Ended())
	assert.NotSame(t, stale, h.Trace())

	// The old root is gone from the run index.
	h.OnChainEnd(ctx, nil, first)
	assert.False(t, h.Trace().Ended())

	h.OnChainEnd(ctx, nil, second)
	require.NoError(t, client.Flush(ctx))

	traces := rec.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "first", traces[0]["name"])
	assert.Equal(t, "second", traces[1]["name"])
}

func TestHandler_NewRootReusingStaleRunID(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(nil))

	first, child := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("first"), nil, first, uuid.Nil, nil, nil)
	h.OnToolStart(ctx, named("tool"), "q", child, first, nil, nil)
	stale := h.Trace()

	// The new root carries the id of a run that is still open in the old trace.
	h.OnChainStart(ctx, named("second"), nil, child, uuid.Nil, nil, nil)

	assert.True(t, stale.Ended())
	require.NotSame(t, stale, h.Trace())
	assert.Equal(t, "second", h.Trace().Name())

	h.OnChainEnd(ctx, map[string]any{"ok": true}, child)
	assert.True(t, h.Trace().Ended())
	require.Len(t, h.Trace().Spans(), 1)
	assert.Equal(t, "second", h.Trace().Spans()[0].Name())
}

func TestHandler_ErrorEvents(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil)

	root, tool := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnToolStart(ctx, named("search"), "q", tool, root, []string{"web"}, map[string]any{"k": "v"})
	h.OnToolError(ctx, errors.New("timeout"), tool)

	span := h.Trace().Spans()[0].Children()[0]
	assert.Equal(t, athina.StatusError, span.Status())
	assert.Equal(t, "timeout", span.Attributes()[athina.AttrStatusMessage])
	assert.Equal(t, []string{"web"}, span.Attributes()["tags"])
	assert.Equal(t, "v", span.Attributes()["k"])
	assert.True(t, span.Ended())
	assert.False(t, h.Trace().Ended())

	h.OnChainError(ctx, fmt.Errorf("chain failed: %w", errors.New("timeout")), root)
	assert.True(t, h.Trace().Ended())
	assert.Equal(t, athina.StatusError, h.Trace().Status())
}

func TestHandler_RetrieverOutput(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil)

	root, ret := uuid.New(), uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnRetrieverStart(ctx, named("VectorStoreRetriever"), "what is go", ret, root, nil, nil)
	h.OnRetrieverEnd(ctx, []Document{
		{PageContent: "Go is a language"},
		{PageContent: "Go has goroutines", Metadata: map[string]any{"source": "faq"}},
	}, ret)

	span := h.Trace().Spans()[0].Children()[0]
	assert.Equal(t, map[string]any{"query": "what is go"}, span.Input())
	assert.Equal(t, []map[string]any{
		{"page_content": "Go is a language"},
		{"page_content": "Go has goroutines", "metadata": map[string]any{"source": "faq"}},
	}, span.Output())
}

func TestHandler_AgentActionClosesRunOnly(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil)

	root := uuid.New()
	h.OnChainStart(ctx, named("AgentExecutor"), nil, root, uuid.Nil, nil, nil)
	h.OnAgentAction(ctx, map[string]any{"tool": "search"}, root)

	assert.True(t, h.Trace().Spans()[0].Ended())
	assert.False(t, h.Trace().Ended())

	h.OnChainEnd(ctx, map[string]any{"output": "done"}, root)
	assert.True(t, h.Trace().Ended())
}

func TestHandler_TraceOptions(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTraceName("qa"), WithVersion("v2"))

	root := uuid.New()
	h.OnChainStart(ctx, named("RetrievalQA"), nil, root, uuid.Nil, nil, map[string]any{"session_id": "s1"})

	payload := h.Trace().Payload()["trace"].(map[string]any)
	assert.Equal(t, "qa", payload["name"])
	assert.Equal(t, "v2", payload["version"])
	assert.Equal(t, map[string]any{"session_id": "s1"}, payload["attributes"])

	span := payload["spans"].([]any)[0].(map[string]any)
	assert.Equal(t, "RetrievalQA", span["name"])
	assert.Equal(t, "v2", span["version"])
}

func TestHandler_AttachesToContextTrace(t *testing.T) {
	outer, err := athina.NewTrace().Name("request").Create()
	require.NoError(t, err)
	ctx := athina.ContextWithTrace(context.Background(), outer)

	h := NewHandler(nil)
	root := uuid.New()
	h.OnChainStart(ctx, named("chain"), nil, root, uuid.Nil, nil, nil)
	h.OnChainEnd(ctx, nil, root)

	assert.Same(t, outer, h.Trace())
	assert.False(t, outer.Ended(), "the handler only ends traces it opened")
	require.Len(t, outer.Spans(), 1)
	assert.True(t, outer.Spans()[0].Ended())
}

func TestHandler_GenerationMetadata(t *testing.T) {
	ctx := context.Background()
	h := NewHandler(nil, WithTokenCounter(nil))

	llm := uuid.New()
	h.OnChatModelStart(ctx, named("ChatOpenAI"), [][]Message{{
		{Type: "system", Content: "be brief"},
		{Type: "chat", Role: "critic", Content: "hmm", AdditionalKwargs: map[string]any{"name": "bob"}},
	}}, llm, uuid.Nil, nil, map[string]any{
		"prompt_slug":           "qa",
		"user_query":            "why",
		"global_context":        map[string]any{"doc": "d"},
		"session_id":            "s",
		"customer_id":           "c",
		"customer_user_id":      "u",
		"external_reference_id": "ref",
		"custom_attributes":     map[string]any{"team": "x"},
	}, map[string]any{"model_name": "gpt-4o"})

	attrs := h.Trace().Spans()[0].Attributes()
	assert.Equal(t, "qa", attrs[athina.AttrPromptSlug])
	assert.Equal(t, "why", attrs[athina.AttrUserQuery])
	assert.Equal(t, map[string]any{"doc": "d"}, attrs[athina.AttrContext])
	assert.Equal(t, "s", attrs[athina.AttrSessionID])
	assert.Equal(t, "c", attrs[athina.AttrCustomerID])
	assert.Equal(t, "u", attrs[athina.AttrCustomerUserID])
	assert.Equal(t, "ref", attrs[athina.AttrExternalReferenceID])
	assert.Equal(t, map[string]any{"team": "x"}, attrs[athina.AttrCustomAttributes])
	assert.Equal(t, "gpt-4o", attrs[athina.AttrLanguageModelID])
	assert.Equal(t, []any{
		map[string]any{"role": "system", "content": "be brief"},
		map[string]any{"role": "critic", "content": "hmm", "name": "bob", "additional_kwargs": map[string]any{"name": "bob"}},
	}, attrs[athina.AttrPrompt])
}
