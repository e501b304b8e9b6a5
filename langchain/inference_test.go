package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/athinatest"
)

func TestInferenceHandler_LogsChatRun(t *testing.T) {
	ctx := context.Background()
	client, rec := athinatest.NewRecordingClient(t)
	h := NewInferenceHandler(client, "support-answer",
		WithInferenceTokenCounter(fakeCounter{}),
		WithInferenceMeta(InferenceMeta{
			UserQuery:   "reset password?",
			SessionID:   "s-1",
			CustomerID:  "acme",
			Environment: "staging",
			Context:     map[string]any{"tenant": "eu"},
		}))

	h.OnRetrieverEnd(ctx, []Document{{PageContent: "doc one"}, {PageContent: "doc two"}}, uuid.New())

	run := uuid.New()
	h.OnChatModelStart(ctx, named("chat"),
		[][]Message{{{Type: "system", Content: "be brief"}, {Type: "human", Content: "reset password?"}}},
		run, uuid.New(), nil, nil, map[string]any{"model_name": "gpt-4o"})
	h.OnLLMEnd(ctx, &LLMResult{
		Generations: [][]Generation{{{Message: &Message{Type: "ai", Content: "Use the link."}}}},
	}, run)
	require.NoError(t, client.Flush(ctx))

	deliveries := rec.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, athina.PathInference, deliveries[0].Path)

	body := deliveries[0].Body
	assert.Equal(t, "gpt-4o", body["language_model_id"])
	assert.Equal(t, "support-answer", body["prompt_slug"])
	assert.Equal(t, "Use the link.", body["response"])
	assert.Equal(t, "staging", body["environment"])
	assert.Equal(t, "reset password?", body["user_query"])
	assert.Equal(t, "s-1", body["session_id"])
	assert.Equal(t, "acme", body["customer_id"])
	assert.NotContains(t, body, "customer_user_id")
	assert.Equal(t, map[string]any{"tenant": "eu", "documents": "doc one\ndoc two\n"}, body["context"])
	assert.EqualValues(t, 20, body["prompt_tokens"])
	assert.EqualValues(t, len("Use the link."), body["completion_tokens"])
	assert.EqualValues(t, 20+len("Use the link."), body["total_tokens"])

	prompt, ok := body["prompt"].([]any)
	require.True(t, ok)
	assert.Len(t, prompt, 2)
}

func TestInferenceHandler_CompletionRunUsesProviderUsage(t *testing.T) {
	ctx := context.Background()
	client, rec := athinatest.NewRecordingClient(t)
	h := NewInferenceHandler(client, "summarize", WithInferenceTokenCounter(fakeCounter{}))

	run := uuid.New()
	h.OnLLMStart(ctx, named("llm"), []string{"summarize", "this"}, run, uuid.Nil, nil, nil,
		map[string]any{"model_name": "gpt-3.5-turbo-instruct"})
	h.OnLLMEnd(ctx, &LLMResult{
		Generations: [][]Generation{{{Text: " short "}}},
		LLMOutput: map[string]any{"token_usage": map[string]any{
			"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4,
		}},
	}, run)
	require.NoError(t, client.Flush(ctx))

	deliveries := rec.Deliveries()
	require.Len(t, deliveries, 1)
	body := deliveries[0].Body
	assert.Equal(t, map[string]any{"text": "summarize this"}, body["prompt"])
	assert.Equal(t, "short", body["response"])
	assert.EqualValues(t, 3, body["prompt_tokens"])
	assert.EqualValues(t, 4, body["total_tokens"])
	assert.NotContains(t, body, "context")
}

func TestInferenceHandler_IgnoresOtherRuns(t *testing.T) {
	ctx := context.Background()
	client, rec := athinatest.NewRecordingClient(t)
	logger := athinatest.NewMockLogger()
	h := NewInferenceHandler(client, "slug", WithInferenceLogger(logger))

	failed := uuid.New()
	h.OnLLMStart(ctx, named("llm"), []string{"p"}, failed, uuid.Nil, nil, nil, map[string]any{"model": "m"})
	h.OnLLMError(ctx, errors.New("rate limited"), failed)
	h.OnLLMEnd(ctx, &LLMResult{}, failed)
	h.Handle(ctx, Event{Kind: KindStart, Entity: EntityChain, RunID: "chain"})
	require.NoError(t, client.Flush(ctx))

	assert.Zero(t, rec.Count())
	assert.Len(t, logger.EntriesAt("WARN"), 1, "end after error is reported once")
}
