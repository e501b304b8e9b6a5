package athina

// Span types.
const (
	SpanTypeSpan       = "span"
	SpanTypeGeneration = "generation"
)

// Status values written by the SDK itself. Callers may set any string.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Attributes is the free-form key/value bag carried by traces and spans.
type Attributes map[string]any

// clone returns a shallow copy; nil becomes an empty map.
func (a Attributes) clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// merge copies every key of src into a, replacing existing values.
func (a Attributes) merge(src Attributes) {
	for k, v := range src {
		a[k] = v
	}
}

// Message is a single chat message recorded as part of a prompt.
type Message struct {
	Role             string         `json:"role"`
	Content          string         `json:"content"`
	Name             string         `json:"name,omitempty"`
	AdditionalKwargs map[string]any `json:"additional_kwargs,omitempty"`
}

// asMap renders the message the way it appears in payloads.
func (m Message) asMap() map[string]any {
	out := map[string]any{"role": m.Role, "content": m.Content}
	if m.Name != "" {
		out["name"] = m.Name
	}
	if len(m.AdditionalKwargs) > 0 {
		out["additional_kwargs"] = m.AdditionalKwargs
	}
	return out
}

// GenerationFields is the typed set of LLM-call details a generation carries.
// Nil fields are unset and never appear in the generation's attributes.
type GenerationFields struct {
	Prompt               any
	Response             any
	PromptSlug           *string
	LanguageModelID      *string
	Environment          *string
	Functions            []map[string]any
	FunctionCallResponse any
	Tools                any
	ToolCalls            any
	ExternalReferenceID  *string
	CustomerID           *string
	CustomerUserID       *string
	SessionID            *string
	UserQuery            *string
	PromptTokens         *int
	CompletionTokens     *int
	TotalTokens          *int
	ResponseTime         *int64
	Context              map[string]any
	ExpectedResponse     *string
	CustomAttributes     map[string]any
	Cost                 *float64
	CustomEvalMetrics    map[string]any
}

// Attribute keys used for generation fields.
const (
	AttrPrompt               = "prompt"
	AttrResponse             = "response"
	AttrPromptSlug           = "prompt_slug"
	AttrLanguageModelID      = "language_model_id"
	AttrEnvironment          = "environment"
	AttrFunctions            = "functions"
	AttrFunctionCallResponse = "function_call_response"
	AttrTools                = "tools"
	AttrToolCalls            = "tool_calls"
	AttrExternalReferenceID  = "external_reference_id"
	AttrCustomerID           = "customer_id"
	AttrCustomerUserID       = "customer_user_id"
	AttrSessionID            = "session_id"
	AttrUserQuery            = "user_query"
	AttrPromptTokens         = "prompt_tokens"
	AttrCompletionTokens     = "completion_tokens"
	AttrTotalTokens          = "total_tokens"
	AttrResponseTime         = "response_time"
	AttrContext              = "context"
	AttrExpectedResponse     = "expected_response"
	AttrCustomAttributes     = "custom_attributes"
	AttrCost                 = "cost"
	AttrCustomEvalMetrics    = "custom_eval_metrics"
	AttrError                = "error"
	AttrStatusMessage        = "status_message"
)

// attributes returns only the fields that are set, keyed by attribute name.
func (f *GenerationFields) attributes() Attributes {
	out := Attributes{}
	if f == nil {
		return out
	}
	setAny := func(key string, v any) {
		if v != nil {
			out[key] = v
		}
	}
	setStr := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			out[key] = *v
		}
	}

	setAny(AttrPrompt, normalizePrompt(f.Prompt))
	setAny(AttrResponse, f.Response)
	setStr(AttrPromptSlug, f.PromptSlug)
	setStr(AttrLanguageModelID, f.LanguageModelID)
	setStr(AttrEnvironment, f.Environment)
	if f.Functions != nil {
		out[AttrFunctions] = f.Functions
	}
	setAny(AttrFunctionCallResponse, f.FunctionCallResponse)
	setAny(AttrTools, f.Tools)
	setAny(AttrToolCalls, f.ToolCalls)
	setStr(AttrExternalReferenceID, f.ExternalReferenceID)
	setStr(AttrCustomerID, f.CustomerID)
	setStr(AttrCustomerUserID, f.CustomerUserID)
	setStr(AttrSessionID, f.SessionID)
	setStr(AttrUserQuery, f.UserQuery)
	setInt(AttrPromptTokens, f.PromptTokens)
	setInt(AttrCompletionTokens, f.CompletionTokens)
	setInt(AttrTotalTokens, f.TotalTokens)
	if f.ResponseTime != nil {
		out[AttrResponseTime] = *f.ResponseTime
	}
	if f.Context != nil {
		out[AttrContext] = f.Context
	}
	setStr(AttrExpectedResponse, f.ExpectedResponse)
	if f.CustomAttributes != nil {
		out[AttrCustomAttributes] = f.CustomAttributes
	}
	if f.Cost != nil {
		out[AttrCost] = *f.Cost
	}
	if f.CustomEvalMetrics != nil {
		out[AttrCustomEvalMetrics] = f.CustomEvalMetrics
	}
	return out
}

// normalizePrompt converts typed messages into their payload form.
func normalizePrompt(p any) any {
	switch v := p.(type) {
	case nil:
		return nil
	case []Message:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m.asMap()
		}
		return out
	case Message:
		return v.asMap()
	default:
		return p
	}
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Int64 returns a pointer to n.
func Int64(n int64) *int64 { return &n }

// Float64 returns a pointer to f.
func Float64(f float64) *float64 { return &f }
