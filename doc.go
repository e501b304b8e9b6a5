// Package athina provides a Go SDK for the Athina LLM observability platform.
//
// The SDK records traces of LLM pipelines as trees of spans and generations,
// logs standalone inferences, and forwards end-user feedback. Recording never
// blocks on the network: ended traces and inferences are queued and delivered
// by background workers.
//
// # Quick Start
//
// Create a client and start tracing:
//
//	client, err := athina.New(os.Getenv("ATHINA_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	// Create a trace
//	trace, err := client.NewTrace().
//	    Name("answer-question").
//	    Attribute("user_id", "user-123").
//	    Create()
//
//	// Record an LLM generation
//	gen, err := trace.NewGeneration().
//	    Name("openai-completion").
//	    LanguageModelID("gpt-4o").
//	    Prompt("What is Go?").
//	    Create()
//
//	// ... make your LLM call ...
//
//	gen.Update().
//	    Response("Go is a programming language...").
//	    Usage(12, 40).
//	    Apply()
//
//	// Ending the trace ends every open span and queues the trace
//	trace.End()
//
// # Context Propagation
//
// [Client.StartTrace], [ContextWithTrace] and [ContextWithSpan] carry the
// current trace and span through a context.Context. [ObserveTrace],
// [ObserveSpan] and [ObserveGeneration] wrap a function in a node that is
// ended, and marked as failed on error, when the function returns.
//
// # Configuration
//
// The client can be configured with options:
//
//	client, err := athina.New(apiKey,
//	    athina.WithEnvironment("staging"),
//	    athina.WithWorkers(4),
//	    athina.WithQueueSize(2048),
//	    athina.WithDebug(true),
//	)
//
// or from ATHINA_* environment variables and an optional .athina.yaml file
// with [NewFromEnv] and [NewFromFile].
//
// # Thread Safety
//
// The Client, Trace, Span and Generation are safe for concurrent use.
// Builders (TraceBuilder, SpanBuilder, etc.) should only be used from a
// single goroutine.
//
// # Delivery Semantics
//
// Delivery is best effort:
//
//   - Each trace is sent once, when it ends, as a single payload
//   - A failed request is retried once after a fixed delay by default
//   - Payloads are dropped when the queue is full; the drop is logged and
//     [Client.LogInference] returns [ErrQueueFull]
//   - Delivery failures never reach instrumented code; they are logged and
//     passed to the handler set with [WithErrorHandler]
//
// [Client.LogUserFeedback] is the exception: it runs synchronously and
// returns the API error.
//
// # Graceful Shutdown
//
// Always call [Client.Shutdown] before your application exits so queued
// payloads are delivered:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	if err := client.Shutdown(ctx); err != nil {
//	    log.Printf("shutdown warning: %v", err)
//	}
//
// If the context ends first, remaining payloads are lost. Call
// [Client.Flush] at natural breakpoints to shorten that window.
//
// # Subpackages
//
//   - [github.com/jdziat/athina-go/langchain]: a callback handler that turns
//     LangChain-style run events into a trace.
//   - [github.com/jdziat/athina-go/openai]: chat completion middleware that
//     logs every call as an inference.
//   - [github.com/jdziat/athina-go/otelbridge]: replays ended traces as
//     OpenTelemetry spans.
//   - [github.com/jdziat/athina-go/pkg/metrics]: a Prometheus [Metrics]
//     implementation.
//   - [github.com/jdziat/athina-go/pkg/tokencount]: local token counting
//     for OpenAI models.
//   - [github.com/jdziat/athina-go/athinatest]: mock servers, recording
//     clients and mocks for unit tests.
//
// # Examples
//
// See the examples directory for complete working examples:
//   - examples/basic: traces, inferences and feedback
//   - examples/langchain: the LangChain handler
//   - examples/middleware: OpenAI middleware with Prometheus and OpenTelemetry
//   - examples/testing: testing code that uses the SDK
package athina

// Version is the current SDK version.
// This is used in User-Agent headers and for debugging.
const Version = "1.0.0"
