package athina

import (
	"context"
	"net/http"
)

// Inference is a single LLM call logged outside of any trace.
//
// Only LanguageModelID and Prompt are required. Unset pointer and nil map
// fields are left out of the payload.
type Inference struct {
	Prompt               any              `json:"prompt"`
	Response             any              `json:"response,omitempty"`
	PromptSlug           *string          `json:"prompt_slug,omitempty"`
	LanguageModelID      string           `json:"language_model_id"`
	Environment          string           `json:"environment,omitempty"`
	Functions            []map[string]any `json:"functions,omitempty"`
	FunctionCallResponse any              `json:"function_call_response,omitempty"`
	Tools                any              `json:"tools,omitempty"`
	ToolCalls            any              `json:"tool_calls,omitempty"`
	ExternalReferenceID  *string          `json:"external_reference_id,omitempty"`
	CustomerID           *string          `json:"customer_id,omitempty"`
	CustomerUserID       *string          `json:"customer_user_id,omitempty"`
	SessionID            *string          `json:"session_id,omitempty"`
	UserQuery            *string          `json:"user_query,omitempty"`
	PromptTokens         *int             `json:"prompt_tokens,omitempty"`
	CompletionTokens     *int             `json:"completion_tokens,omitempty"`
	TotalTokens          *int             `json:"total_tokens,omitempty"`
	ResponseTime         *int64           `json:"response_time,omitempty"`
	Context              map[string]any   `json:"context,omitempty"`
	ExpectedResponse     *string          `json:"expected_response,omitempty"`
	CustomAttributes     map[string]any   `json:"custom_attributes,omitempty"`
	CustomEvalMetrics    map[string]any   `json:"custom_eval_metrics,omitempty"`
	Cost                 *float64         `json:"cost,omitempty"`
	ModelOptions         *ModelOptions    `json:"model_options,omitempty"`
}

// ModelOptions records the sampling settings of an inference.
type ModelOptions struct {
	Temperature         *float64       `json:"temperature,omitempty"`
	MaxCompletionTokens *int           `json:"max_completion_tokens,omitempty"`
	Stop                any            `json:"stop,omitempty"`
	TopP                *float64       `json:"top_p,omitempty"`
	ExtraOptions        map[string]any `json:"extra_options,omitempty"`
}

// Validate checks the required fields.
func (in *Inference) Validate() error {
	if in == nil {
		return ErrNilRequest
	}
	if in.LanguageModelID == "" {
		return NewValidationError("language_model_id", "language model id is required")
	}
	if in.Prompt == nil {
		return NewValidationError("prompt", "prompt is required")
	}
	return nil
}

// payload returns the wire body with unset fields removed. Each value is
// sanitized on its own, so one unencodable value is replaced in place
// without losing the rest of the inference.
func (in *Inference) payload(defaultEnv string) map[string]any {
	env := in.Environment
	if env == "" {
		env = defaultEnv
	}
	body := map[string]any{
		"prompt":            sanitize(normalizePrompt(in.Prompt)),
		"language_model_id": in.LanguageModelID,
	}
	if env != "" {
		body["environment"] = env
	}
	setAny := func(key string, v any) {
		if sv := sanitize(v); sv != nil {
			body[key] = sv
		}
	}
	setMap := func(key string, m map[string]any) {
		if m != nil {
			body[key] = sanitize(m)
		}
	}
	setStr := func(key string, v *string) {
		if v != nil {
			body[key] = *v
		}
	}
	setInt := func(key string, v *int) {
		if v != nil {
			body[key] = *v
		}
	}

	setAny("response", in.Response)
	setStr("prompt_slug", in.PromptSlug)
	if in.Functions != nil {
		fns := make([]any, len(in.Functions))
		for i, fn := range in.Functions {
			fns[i] = fn
		}
		body["functions"] = sanitize(fns)
	}
	setAny("function_call_response", in.FunctionCallResponse)
	setAny("tools", in.Tools)
	setAny("tool_calls", in.ToolCalls)
	setStr("external_reference_id", in.ExternalReferenceID)
	setStr("customer_id", in.CustomerID)
	setStr("customer_user_id", in.CustomerUserID)
	setStr("session_id", in.SessionID)
	setStr("user_query", in.UserQuery)
	setInt("prompt_tokens", in.PromptTokens)
	setInt("completion_tokens", in.CompletionTokens)
	setInt("total_tokens", in.TotalTokens)
	if in.ResponseTime != nil {
		body["response_time"] = *in.ResponseTime
	}
	setMap("context", in.Context)
	setStr("expected_response", in.ExpectedResponse)
	setMap("custom_attributes", in.CustomAttributes)
	setMap("custom_eval_metrics", in.CustomEvalMetrics)
	if in.Cost != nil {
		body["cost"] = sanitizeFloat(*in.Cost)
	}
	if in.ModelOptions != nil {
		body["model_options"] = in.ModelOptions.payload()
	}
	return body
}

func (o *ModelOptions) payload() map[string]any {
	out := map[string]any{}
	if o.Temperature != nil {
		out["temperature"] = sanitizeFloat(*o.Temperature)
	}
	if o.MaxCompletionTokens != nil {
		out["max_completion_tokens"] = *o.MaxCompletionTokens
	}
	if sv := sanitize(o.Stop); sv != nil {
		out["stop"] = sv
	}
	if o.TopP != nil {
		out["top_p"] = sanitizeFloat(*o.TopP)
	}
	if o.ExtraOptions != nil {
		out["extra_options"] = sanitize(o.ExtraOptions)
	}
	return out
}

// LogInference validates in and queues it for delivery. It returns as soon
// as the payload is queued; delivery failures go to the ErrorHandler.
//
//	err := client.LogInference(ctx, &athina.Inference{
//	    LanguageModelID: "gpt-4o",
//	    Prompt:          []athina.Message{{Role: "user", Content: q}},
//	    Response:        answer,
//	    PromptTokens:    athina.Int(12),
//	})
func (c *Client) LogInference(ctx context.Context, in *Inference) error {
	if err := in.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClientClosed
	}
	if c.config.Metrics != nil {
		c.config.Metrics.IncrementCounter(MetricInferencesLogged, 1)
	}
	body := in.payload(c.config.Environment)
	if !c.submit(&DeliveryRequest{Method: http.MethodPost, Path: PathInference, Body: body}) {
		return ErrQueueFull
	}
	return nil
}

// UserFeedback is an end-user rating of a logged inference, matched by its
// external reference id.
type UserFeedback struct {
	ExternalReferenceID string  `json:"external_reference_id"`
	UserFeedback        int     `json:"user_feedback"`
	Comment             *string `json:"user_feedback_comment,omitempty"`
}

// Validate checks the required fields.
func (f *UserFeedback) Validate() error {
	if f == nil {
		return ErrNilRequest
	}
	if f.ExternalReferenceID == "" {
		return NewValidationError("external_reference_id", "external reference id is required")
	}
	return nil
}

// LogUserFeedback sends f and waits for the API to accept it. Unlike trace
// and inference delivery it runs on the caller's goroutine and returns the
// API error, if any.
func (c *Client) LogUserFeedback(ctx context.Context, f *UserFeedback) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.dispatch.safeDeliver(ctx, &DeliveryRequest{
		Method: http.MethodPatch,
		Path:   PathUserFeedback,
		Body:   f,
	})
}
