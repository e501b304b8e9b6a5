// Package tokencount counts prompt and completion tokens locally for OpenAI
// models when a provider does not report usage.
//
// Encodings are loaded lazily through tiktoken-go and cached per Counter.
// The first load may download BPE data.
package tokencount

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// ErrUnsupportedModel is returned for models with no known encoding.
var ErrUnsupportedModel = errors.New("tokencount: unsupported model")

// Chat message overhead for the 0613 chat format.
const (
	tokensPerMessage = 3
	tokensPerName    = 1
	replyPriming     = 3
)

// modelEncodings maps canonical model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-3.5-turbo-0613":     "cl100k_base",
	"gpt-3.5-turbo-16k-0613": "cl100k_base",
	"gpt-4-0613":             "cl100k_base",
	"gpt-4-32k-0613":         "cl100k_base",
	"gpt-4o":                 "o200k_base",
	"gpt-4o-mini":            "o200k_base",
	"text-davinci-003":       "p50k_base",
}

// chatModels is the set of canonical models counted with the chat format.
var chatModels = map[string]bool{
	"gpt-3.5-turbo-0613":     true,
	"gpt-3.5-turbo-16k-0613": true,
	"gpt-4-0613":             true,
	"gpt-4-32k-0613":         true,
	"gpt-4o":                 true,
	"gpt-4o-mini":            true,
}

// Message is a chat message as seen by the tokenizer.
type Message struct {
	Role    string
	Content string
	Name    string
}

// ResolveModel maps a model name to the canonical chat model it is counted
// as. Dated and sized variants of gpt-3.5-turbo and gpt-4 fold into their
// 0613 snapshot; gpt-4o variants fold into gpt-4o.
func ResolveModel(model string) (string, error) {
	if chatModels[model] {
		return model, nil
	}
	switch {
	case strings.HasPrefix(model, "gpt-4o-mini"):
		return "gpt-4o-mini", nil
	case strings.HasPrefix(model, "gpt-4o"):
		return "gpt-4o", nil
	case strings.Contains(model, "gpt-3.5-turbo"):
		return "gpt-3.5-turbo-0613", nil
	case strings.Contains(model, "gpt-4"):
		return "gpt-4-0613", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedModel, model)
}

// Counter counts tokens and caches loaded encodings. The zero value is not
// usable; call New.
//
// A Counter is safe for concurrent use.
type Counter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	load      func(encoding string) (*tiktoken.Tiktoken, error)
}

// New returns a Counter that loads encodings with tiktoken.GetEncoding.
func New() *Counter {
	return &Counter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		load:      tiktoken.GetEncoding,
	}
}

var defaultCounter = New()

// Default returns the process-wide Counter.
func Default() *Counter {
	return defaultCounter
}

func (c *Counter) encoding(name string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodings[name]; ok {
		return enc, nil
	}
	enc, err := c.load(name)
	if err != nil {
		return nil, fmt.Errorf("tokencount: load encoding %s: %w", name, err)
	}
	c.encodings[name] = enc
	return enc, nil
}

func (c *Counter) count(encoding, text string) (int, error) {
	enc, err := c.encoding(encoding)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// ChatPromptTokens counts the prompt tokens of a chat completion request:
// every message field is encoded, plus 3 tokens per message, 1 per name and
// 3 for the reply priming.
func (c *Counter) ChatPromptTokens(model string, messages []Message) (int, error) {
	if messages == nil {
		return 0, errors.New("tokencount: messages is nil")
	}
	canonical, err := ResolveModel(model)
	if err != nil {
		return 0, err
	}
	enc, err := c.encoding(modelEncodings[canonical])
	if err != nil {
		return 0, err
	}

	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Role, nil, nil))
		total += len(enc.Encode(m.Content, nil, nil))
		if m.Name != "" {
			total += len(enc.Encode(m.Name, nil, nil)) + tokensPerName
		}
	}
	return total + replyPriming, nil
}

// CompletionTokens counts the tokens of a chat completion response.
func (c *Counter) CompletionTokens(model, response string) (int, error) {
	canonical, err := ResolveModel(model)
	if err != nil {
		return 0, err
	}
	return c.count(modelEncodings[canonical], response)
}

// TextTokens counts text for a legacy completion model such as
// text-davinci-003. Chat models are accepted too.
func (c *Counter) TextTokens(model, text string) (int, error) {
	if enc, ok := modelEncodings[model]; ok {
		return c.count(enc, text)
	}
	canonical, err := ResolveModel(model)
	if err != nil {
		return 0, err
	}
	return c.count(modelEncodings[canonical], text)
}
