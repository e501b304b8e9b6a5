// Package langchain turns LangChain-style callback events into Athina traces.
//
// A Handler receives lifecycle notifications for chains, LLM and chat model
// calls, tools, retrievers and agents, each addressed by a run id and an
// optional parent run id. The first root run opens a trace; every child run
// becomes a span (or, for model calls, a generation) under its parent; the
// root run's terminal event ends the trace and queues it for delivery.
//
//	handler := langchain.NewHandler(client, langchain.WithTraceName("qa"))
//
//	root := uuid.New()
//	handler.OnChainStart(ctx, serialized, inputs, root, uuid.Nil, nil, nil)
//	llm := uuid.New()
//	handler.OnChatModelStart(ctx, serialized, messages, llm, root, nil, metadata, params)
//	handler.OnLLMEnd(ctx, result, llm)
//	handler.OnChainEnd(ctx, outputs, root)
//
// Integrations that already normalize events can call Handle directly.
//
// Inconsistent event streams never surface as errors. An end event for an
// unknown run is logged and skipped, and a child whose parent was never
// started is logged and dropped. A new root that arrives while a trace is
// still open ends and delivers the stale trace before a fresh one is opened.
//
// InferenceHandler is the tracing-free alternative: it logs each model run
// as a standalone inference through Client.LogInference.
package langchain
