package openai

import (
	"context"
	"time"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// WrapOption configures Wrap.
type WrapOption func(*completer)

// WithTokenCounter sets the counter used when a response has no usage.
// Passing nil leaves token fields unset in that case.
func WithTokenCounter(c TokenCounter) WrapOption {
	return func(w *completer) { w.counter = c }
}

type completer struct {
	next    ChatCompleter
	client  *athina.Client
	counter TokenCounter
}

// Wrap returns a ChatCompleter that logs every non-streamed completion to
// client. The response and error from next are returned unchanged; logging
// failures are only reported through the client's logger. Streamed requests
// are passed through; use StreamInference for those.
func Wrap(next ChatCompleter, client *athina.Client, opts ...WrapOption) ChatCompleter {
	w := &completer{next: next, client: client, counter: tokencount.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *completer) CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	resp, err := w.next.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start).Milliseconds()

	if err != nil || resp == nil || req == nil || req.Stream || w.client == nil {
		return resp, err
	}

	meta, _ := MetaFromContext(ctx)
	in := meta.inference(req)
	in.ResponseTime = &elapsed
	if in.Environment == "" {
		in.Environment = w.client.Environment()
	}

	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
		in.Response = resp.Choices[0].Message.Content
	}
	if resp.Model != "" {
		in.LanguageModelID = resp.Model
	}
	if resp.Usage != nil {
		in.PromptTokens = athina.Int(resp.Usage.PromptTokens)
		in.CompletionTokens = athina.Int(resp.Usage.CompletionTokens)
		in.TotalTokens = athina.Int(resp.Usage.TotalTokens)
	} else {
		countUsage(w.counter, in, req, text)
	}

	if logErr := w.client.LogInference(context.WithoutCancel(ctx), in); logErr != nil {
		w.client.Logger().Warn("athina: openai inference not logged", "model", req.Model, "error", logErr)
	}
	return resp, err
}

// countUsage fills token counts locally. Unknown models leave them unset.
func countUsage(counter TokenCounter, in *athina.Inference, req *ChatRequest, response string) {
	if counter == nil {
		return
	}
	msgs := make([]tokencount.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = tokencount.Message{Role: m.Role, Content: m.Content, Name: m.Name}
	}
	prompt, err := counter.ChatPromptTokens(req.Model, msgs)
	if err != nil {
		return
	}
	completion, err := counter.CompletionTokens(req.Model, response)
	if err != nil {
		return
	}
	total := prompt + completion
	in.PromptTokens = &prompt
	in.CompletionTokens = &completion
	in.TotalTokens = &total
}
