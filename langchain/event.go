package langchain

import (
	"strings"
)

// EventKind is the lifecycle stage an Event reports.
type EventKind string

const (
	KindStart EventKind = "start"
	KindEnd   EventKind = "end"
	KindError EventKind = "error"
	// KindAction records an intermediate output (agent action or finish)
	// and closes the run without ending the trace.
	KindAction EventKind = "action"
	KindToken  EventKind = "token"
)

// Entity is the kind of component a run belongs to.
type Entity string

const (
	EntityChain     Entity = "chain"
	EntityLLM       Entity = "llm"
	EntityChatModel Entity = "chat_model"
	EntityTool      Entity = "tool"
	EntityRetriever Entity = "retriever"
	EntityAgent     Entity = "agent"
)

func (e Entity) isModel() bool {
	return e == EntityLLM || e == EntityChatModel
}

// Event is one normalized callback notification. Only the fields relevant
// to Kind and Entity need to be set.
type Event struct {
	Kind        EventKind
	Entity      Entity
	RunID       string
	ParentRunID string

	// Serialized describes the invoked component; its "name" or the last
	// element of its "id" becomes the run's display name.
	Serialized map[string]any
	// Name overrides the display name.
	Name     string
	Tags     []string
	Metadata map[string]any

	// Start payloads.
	Inputs           map[string]any
	Prompts          []string
	Messages         [][]Message
	Query            string
	InputStr         string
	InvocationParams map[string]any

	// End payloads.
	Outputs   any
	Result    *LLMResult
	Documents []Document

	Err   error
	Token string
}

// Message is a LangChain chat message.
type Message struct {
	// Type is "human", "ai", "system", "tool", "function" or "chat".
	Type string
	// Role is used when Type is "chat".
	Role             string
	Content          string
	AdditionalKwargs map[string]any
}

// role maps the message type to an OpenAI-style role.
func (m Message) role() string {
	switch m.Type {
	case "human", "user":
		return "user"
	case "ai", "assistant":
		return "assistant"
	case "system":
		return "system"
	case "tool":
		return "tool"
	case "function":
		return "function"
	}
	if m.Role != "" {
		return m.Role
	}
	return m.Type
}

func (m Message) asMap() map[string]any {
	out := map[string]any{"role": m.role(), "content": m.Content}
	if name, ok := m.AdditionalKwargs["name"]; ok {
		out["name"] = name
	}
	if len(m.AdditionalKwargs) > 0 {
		out["additional_kwargs"] = m.AdditionalKwargs
	}
	return out
}

func (m Message) name() string {
	if s, ok := m.AdditionalKwargs["name"].(string); ok {
		return s
	}
	return ""
}

// Document is a retrieved document.
type Document struct {
	PageContent string
	Metadata    map[string]any
}

// LLMResult is the output of an LLM or chat model run.
type LLMResult struct {
	// Generations holds one list of candidates per prompt.
	Generations [][]Generation
	// LLMOutput is provider specific. Token usage is read from its
	// "token_usage" entry.
	LLMOutput map[string]any
}

// Generation is one candidate completion. Chat models set Message.
type Generation struct {
	Text    string
	Message *Message
}

// response extracts the payload recorded as the generation's response and
// the text used for local token counting. Chat candidates yield their
// message; plain completions yield their trimmed text.
func (r *LLMResult) response() (any, string) {
	if r == nil || len(r.Generations) == 0 {
		return nil, ""
	}
	last := r.Generations[len(r.Generations)-1]
	if len(last) == 0 {
		return nil, ""
	}
	g := last[len(last)-1]
	if g.Message != nil {
		return g.Message.asMap(), g.Message.Content
	}
	if text := strings.TrimSpace(g.Text); text != "" {
		return text, text
	}
	return nil, ""
}

// usage returns the provider-reported token counts, if present.
func (r *LLMResult) usage() (prompt, completion, total int, ok bool) {
	if r == nil || r.LLMOutput == nil {
		return 0, 0, 0, false
	}
	u, _ := r.LLMOutput["token_usage"].(map[string]any)
	if len(u) == 0 {
		return 0, 0, 0, false
	}
	prompt, pok := toInt(u["prompt_tokens"])
	completion, cok := toInt(u["completion_tokens"])
	total, tok := toInt(u["total_tokens"])
	if !tok && pok && cok {
		total, tok = prompt+completion, true
	}
	return prompt, completion, total, pok || cok || tok
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// runName derives the display name of a run.
func runName(name string, serialized map[string]any) string {
	if name != "" {
		return name
	}
	if s, ok := serialized["name"].(string); ok && s != "" {
		return s
	}
	switch id := serialized["id"].(type) {
	case []string:
		if len(id) > 0 {
			return id[len(id)-1]
		}
	case []any:
		if len(id) > 0 {
			if s, ok := id[len(id)-1].(string); ok {
				return s
			}
		}
	}
	return "<unknown>"
}

// joinTagsAndMetadata merges tags into the metadata map under "tags".
func joinTagsAndMetadata(tags []string, metadata map[string]any) map[string]any {
	if len(tags) == 0 {
		return metadata
	}
	out := map[string]any{"tags": tags}
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func documentsOutput(docs []Document) []map[string]any {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		m := map[string]any{"page_content": d.PageContent}
		if len(d.Metadata) > 0 {
			m["metadata"] = d.Metadata
		}
		out[i] = m
	}
	return out
}
