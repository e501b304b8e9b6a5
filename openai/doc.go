// Package openai logs OpenAI chat completions to Athina.
//
// Wrap decorates any ChatCompleter. Adapting an SDK client takes a small
// ChatCompleterFunc; the wrapper measures response time, picks up per-call
// Meta from the context, and queues an inference log without blocking the
// call:
//
//	completer := openai.Wrap(openai.ChatCompleterFunc(callOpenAI), client)
//	ctx = openai.WithMeta(ctx, openai.Meta{PromptSlug: "support", SessionID: sid})
//	resp, err := completer.CreateChatCompletion(ctx, req)
//
// Streamed requests are passed through untouched. Log them with a
// StreamInference once the stream is drained:
//
//	si := openai.NewStreamInference(client, req)
//	if err := si.Collect(stream); err != nil { ... }
//	si.Log(ctx)
package openai
