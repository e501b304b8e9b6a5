package openai

import (
	"context"

	"github.com/jdziat/athina-go"
	"github.com/jdziat/athina-go/pkg/tokencount"
)

// ChatMessage is one message of a chat completion request or response.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest is the subset of an OpenAI chat completion request the
// wrapper records.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// Usage is the token usage reported by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatResponse is a chat completion response.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// ChatCompleter creates chat completions.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ChatCompleterFunc adapts a function to the ChatCompleter interface.
type ChatCompleterFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// CreateChatCompletion calls f(ctx, req).
func (f ChatCompleterFunc) CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// TokenCounter counts tokens for responses that carry no usage, such as
// streams. *tokencount.Counter implements it.
type TokenCounter interface {
	ChatPromptTokens(model string, messages []tokencount.Message) (int, error)
	CompletionTokens(model, response string) (int, error)
}

// Meta carries per-call Athina fields through the context.
type Meta struct {
	PromptSlug          string
	Environment         string
	SessionID           string
	CustomerID          string
	CustomerUserID      string
	UserQuery           string
	ExternalReferenceID string
	Context             map[string]any
	CustomAttributes    map[string]any
	CustomEvalMetrics   map[string]any
}

type metaKey struct{}

// WithMeta returns a copy of ctx carrying m.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFromContext returns the Meta stored in ctx, if any.
func MetaFromContext(ctx context.Context) (Meta, bool) {
	m, ok := ctx.Value(metaKey{}).(Meta)
	return m, ok
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// inference builds the log entry shared by the wrapper and streams.
func (m Meta) inference(req *ChatRequest) *athina.Inference {
	slug := m.PromptSlug
	if slug == "" {
		slug = "default"
	}
	prompt := make([]athina.Message, len(req.Messages))
	for i, msg := range req.Messages {
		prompt[i] = athina.Message{Role: msg.Role, Content: msg.Content, Name: msg.Name}
	}
	in := &athina.Inference{
		Prompt:              prompt,
		LanguageModelID:     req.Model,
		PromptSlug:          &slug,
		Environment:         m.Environment,
		SessionID:           optional(m.SessionID),
		CustomerID:          optional(m.CustomerID),
		CustomerUserID:      optional(m.CustomerUserID),
		UserQuery:           optional(m.UserQuery),
		ExternalReferenceID: optional(m.ExternalReferenceID),
		Context:             m.Context,
		CustomAttributes:    m.CustomAttributes,
		CustomEvalMetrics:   m.CustomEvalMetrics,
	}
	if req.Temperature != nil || req.MaxTokens != nil || req.TopP != nil || len(req.Stop) > 0 {
		in.ModelOptions = &athina.ModelOptions{
			Temperature:         req.Temperature,
			MaxCompletionTokens: req.MaxTokens,
			TopP:                req.TopP,
		}
		if len(req.Stop) > 0 {
			in.ModelOptions.Stop = req.Stop
		}
	}
	return in
}
