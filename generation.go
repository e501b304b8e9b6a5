package athina

import "time"

// Generation is a span that records a single LLM call. It embeds the
// underlying *Span, which is what appears in its parent's child list.
type Generation struct {
	*Span
}

// GenerationBuilder provides a fluent interface for creating generations.
//
// GenerationBuilder is NOT safe for concurrent use.
//
// Example:
//
//	gen, err := trace.NewGeneration().
//	    Name("llm").
//	    LanguageModelID("gpt-4").
//	    Prompt([]athina.Message{{Role: "user", Content: "hi"}}).
//	    Create()
type GenerationBuilder struct {
	trace  *Trace
	parent *Span
	fields nodeFields
	gen    Attributes
}

func newGenerationBuilder(t *Trace, parent *Span) *GenerationBuilder {
	return &GenerationBuilder{
		trace:  t,
		parent: parent,
		fields: nodeFields{spanType: SpanTypeGeneration, attributes: Attributes{}},
		gen:    Attributes{},
	}
}

// Name sets the generation name.
func (b *GenerationBuilder) Name(name string) *GenerationBuilder {
	b.fields.name = name
	return b
}

// StartTime sets the start time. Defaults to the time Create is called.
func (b *GenerationBuilder) StartTime(t time.Time) *GenerationBuilder {
	b.fields.startTime = t
	return b
}

// EndTime sets the end time up front.
func (b *GenerationBuilder) EndTime(t time.Time) *GenerationBuilder {
	b.fields.endTime = &t
	return b
}

// Duration sets the duration in milliseconds up front.
func (b *GenerationBuilder) Duration(ms int64) *GenerationBuilder {
	b.fields.duration = &ms
	return b
}

// Status sets the status.
func (b *GenerationBuilder) Status(status string) *GenerationBuilder {
	b.fields.status = &status
	return b
}

// Attributes merges attrs into the generation's attributes.
func (b *GenerationBuilder) Attributes(attrs Attributes) *GenerationBuilder {
	b.fields.attributes.merge(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *GenerationBuilder) Attribute(key string, value any) *GenerationBuilder {
	b.fields.attributes[key] = value
	return b
}

// Input sets the input payload.
func (b *GenerationBuilder) Input(input any) *GenerationBuilder {
	b.fields.input = input
	return b
}

// Output sets the output payload.
func (b *GenerationBuilder) Output(output any) *GenerationBuilder {
	b.fields.output = output
	return b
}

// Version sets the version.
func (b *GenerationBuilder) Version(version string) *GenerationBuilder {
	b.fields.version = &version
	return b
}

// Fields sets every non-nil field of f.
func (b *GenerationBuilder) Fields(f GenerationFields) *GenerationBuilder {
	b.gen.merge(f.attributes())
	return b
}

// Prompt sets the prompt: a string, a []Message or any JSON-like value.
func (b *GenerationBuilder) Prompt(prompt any) *GenerationBuilder {
	return b.Fields(GenerationFields{Prompt: prompt})
}

// Response sets the model response.
func (b *GenerationBuilder) Response(response any) *GenerationBuilder {
	return b.Fields(GenerationFields{Response: response})
}

// LanguageModelID sets the model identifier, e.g. "gpt-4".
func (b *GenerationBuilder) LanguageModelID(model string) *GenerationBuilder {
	return b.Fields(GenerationFields{LanguageModelID: &model})
}

// PromptSlug sets the prompt slug.
func (b *GenerationBuilder) PromptSlug(slug string) *GenerationBuilder {
	return b.Fields(GenerationFields{PromptSlug: &slug})
}

// Environment sets the deployment environment.
func (b *GenerationBuilder) Environment(env string) *GenerationBuilder {
	return b.Fields(GenerationFields{Environment: &env})
}

// SessionID sets the session id.
func (b *GenerationBuilder) SessionID(id string) *GenerationBuilder {
	return b.Fields(GenerationFields{SessionID: &id})
}

// CustomerID sets the customer id.
func (b *GenerationBuilder) CustomerID(id string) *GenerationBuilder {
	return b.Fields(GenerationFields{CustomerID: &id})
}

// UserQuery sets the end user's query.
func (b *GenerationBuilder) UserQuery(q string) *GenerationBuilder {
	return b.Fields(GenerationFields{UserQuery: &q})
}

// Context sets retrieval context passed to the model.
func (b *GenerationBuilder) Context(c map[string]any) *GenerationBuilder {
	return b.Fields(GenerationFields{Context: c})
}

// Usage sets prompt, completion and total token counts.
func (b *GenerationBuilder) Usage(promptTokens, completionTokens int) *GenerationBuilder {
	return b.Fields(usageFields(promptTokens, completionTokens))
}

// Cost sets the cost of the call.
func (b *GenerationBuilder) Cost(cost float64) *GenerationBuilder {
	return b.Fields(GenerationFields{Cost: &cost})
}

// Create appends the generation as the last child of its parent.
func (b *GenerationBuilder) Create() (*Generation, error) {
	if b.fields.name == "" {
		return nil, NewValidationError("name", "generation name is required")
	}
	s := b.fields.build(b.trace)
	s.attributes.merge(b.gen)
	b.trace.attach(b.parent, s)
	return &Generation{Span: s}, nil
}

// Update starts a partial update of the generation. Generation fields set on
// the builder replace the stored values; every other field is kept.
func (g *Generation) Update() *GenerationUpdateBuilder {
	return &GenerationUpdateBuilder{
		span: SpanUpdateBuilder{span: g.Span, attributes: Attributes{}},
	}
}

// Fields returns the generation fields currently stored in the attributes.
func (g *Generation) Fields() Attributes {
	attrs := g.Attributes()
	out := Attributes{}
	for _, k := range generationKeys {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	return out
}

var generationKeys = []string{
	AttrPrompt, AttrResponse, AttrPromptSlug, AttrLanguageModelID, AttrEnvironment,
	AttrFunctions, AttrFunctionCallResponse, AttrTools, AttrToolCalls,
	AttrExternalReferenceID, AttrCustomerID, AttrCustomerUserID, AttrSessionID,
	AttrUserQuery, AttrPromptTokens, AttrCompletionTokens, AttrTotalTokens,
	AttrResponseTime, AttrContext, AttrExpectedResponse, AttrCustomAttributes,
	AttrCost, AttrCustomEvalMetrics,
}

// GenerationUpdateBuilder applies a partial update to a generation.
type GenerationUpdateBuilder struct {
	span SpanUpdateBuilder
}

// EndTime records an end time if the generation has none yet.
func (b *GenerationUpdateBuilder) EndTime(t time.Time) *GenerationUpdateBuilder {
	b.span.EndTime(t)
	return b
}

// Status sets the status.
func (b *GenerationUpdateBuilder) Status(status string) *GenerationUpdateBuilder {
	b.span.Status(status)
	return b
}

// Input replaces the input payload.
func (b *GenerationUpdateBuilder) Input(input any) *GenerationUpdateBuilder {
	b.span.Input(input)
	return b
}

// Output replaces the output payload.
func (b *GenerationUpdateBuilder) Output(output any) *GenerationUpdateBuilder {
	b.span.Output(output)
	return b
}

// Attributes merges attrs into the generation's attributes.
func (b *GenerationUpdateBuilder) Attributes(attrs Attributes) *GenerationUpdateBuilder {
	b.span.Attributes(attrs)
	return b
}

// Attribute sets a single attribute.
func (b *GenerationUpdateBuilder) Attribute(key string, value any) *GenerationUpdateBuilder {
	b.span.Attribute(key, value)
	return b
}

// Fields replaces every generation field that is non-nil in f.
func (b *GenerationUpdateBuilder) Fields(f GenerationFields) *GenerationUpdateBuilder {
	b.span.attributes.merge(f.attributes())
	return b
}

// Prompt replaces the prompt.
func (b *GenerationUpdateBuilder) Prompt(prompt any) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{Prompt: prompt})
}

// Response replaces the response.
func (b *GenerationUpdateBuilder) Response(response any) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{Response: response})
}

// LanguageModelID replaces the model identifier.
func (b *GenerationUpdateBuilder) LanguageModelID(model string) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{LanguageModelID: &model})
}

// PromptTokens replaces the prompt token count.
func (b *GenerationUpdateBuilder) PromptTokens(n int) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{PromptTokens: &n})
}

// CompletionTokens replaces the completion token count.
func (b *GenerationUpdateBuilder) CompletionTokens(n int) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{CompletionTokens: &n})
}

// Usage replaces prompt, completion and total token counts.
func (b *GenerationUpdateBuilder) Usage(promptTokens, completionTokens int) *GenerationUpdateBuilder {
	return b.Fields(usageFields(promptTokens, completionTokens))
}

// ResponseTime sets the response time in milliseconds.
func (b *GenerationUpdateBuilder) ResponseTime(ms int64) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{ResponseTime: &ms})
}

// Cost replaces the cost.
func (b *GenerationUpdateBuilder) Cost(cost float64) *GenerationUpdateBuilder {
	return b.Fields(GenerationFields{Cost: &cost})
}

// Apply writes the update to the generation.
func (b *GenerationUpdateBuilder) Apply() {
	b.span.Apply()
}

func usageFields(promptTokens, completionTokens int) GenerationFields {
	total := promptTokens + completionTokens
	return GenerationFields{
		PromptTokens:     &promptTokens,
		CompletionTokens: &completionTokens,
		TotalTokens:      &total,
	}
}
