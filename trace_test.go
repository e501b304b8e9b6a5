package athina

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTraceBuilder_RequiresName(t *testing.T) {
	_, err := NewTrace().Create()
	if _, ok := AsValidationError(err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestTrace_CreateOnClosedClient(t *testing.T) {
	client := newRecordingClient(t, &recorder{})
	client.Shutdown(t.Context())

	if _, err := client.NewTrace().Name("late").Create(); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("Create = %v, want ErrClientClosed", err)
	}
}

func TestTrace_DurationArithmetic(t *testing.T) {
	tr, _ := NewTrace().Name("t").StartTime(t0).Create()
	if err := tr.EndAt(t0.Add(1250 * time.Millisecond)); err != nil {
		t.Fatalf("EndAt failed: %v", err)
	}
	d, ok := tr.Duration()
	if !ok || d != 1250 {
		t.Errorf("Duration = %d, %v; want 1250", d, ok)
	}

	tr2, _ := NewTrace().Name("t").StartTime(t0).Create()
	tr2.EndAt(t0.Add(1250*time.Millisecond + 999*time.Microsecond))
	if d, _ := tr2.Duration(); d != 1250 {
		t.Errorf("sub-millisecond remainder: Duration = %d, want 1250", d)
	}
}

func TestTrace_EndBeforeStartIsClamped(t *testing.T) {
	tr, _ := NewTrace().Name("t").StartTime(t0).Create()
	tr.EndAt(t0.Add(-time.Second))

	end, _ := tr.EndTime()
	if !end.Equal(t0) {
		t.Errorf("EndTime = %v, want %v", end, t0)
	}
	if d, _ := tr.Duration(); d != 0 {
		t.Errorf("Duration = %d, want 0", d)
	}
}

func TestTrace_SecondEndIsNoop(t *testing.T) {
	rec := &recorder{}
	client := newRecordingClient(t, rec)

	tr, _ := client.NewTrace().Name("once").StartTime(t0).Create()
	if err := tr.EndAt(t0.Add(time.Second)); err != nil {
		t.Fatalf("first End failed: %v", err)
	}
	if err := tr.EndAt(t0.Add(5 * time.Second)); !errors.Is(err, ErrTraceEnded) {
		t.Fatalf("second End = %v, want ErrTraceEnded", err)
	}
	mustFlush(t, client)

	if got := len(rec.traces()); got != 1 {
		t.Fatalf("delivered %d traces, want 1", got)
	}
	if d, _ := tr.Duration(); d != 1000 {
		t.Errorf("Duration = %d, want 1000", d)
	}
}

// A trace closed after 500ms closes its open children at the same instant.
func TestTrace_EndCascadesToOpenSpans(t *testing.T) {
	tr, _ := NewTrace().Name("chain_run").StartTime(t0).Create()
	tool, _ := tr.NewSpan().Name("tool_call").StartTime(t0).Create()

	end := t0.Add(500 * time.Millisecond)
	tr.EndAt(end)

	if d, _ := tr.Duration(); d != 500 {
		t.Errorf("trace duration = %d, want 500", d)
	}
	toolEnd, ok := tool.EndTime()
	if !ok || !toolEnd.Equal(end) {
		t.Errorf("tool_call end = %v, want %v", toolEnd, end)
	}
	if d, _ := tool.Duration(); d != 500 {
		t.Errorf("tool_call duration = %d, want 500", d)
	}
}

func TestTrace_CascadeFillsOnlyUnset(t *testing.T) {
	tr, _ := NewTrace().Name("t").StartTime(t0).Create()
	a, _ := tr.NewSpan().Name("a").StartTime(t0).Create()
	b, _ := tr.NewSpan().Name("b").StartTime(t0).Create()
	nested, _ := a.NewSpan().Name("nested").StartTime(t0).Create()

	t1 := t0.Add(time.Second)
	t2 := t0.Add(3 * time.Second)
	a.FinishAt(t1)
	tr.EndAt(t2)

	if end, _ := a.EndTime(); !end.Equal(t1) {
		t.Errorf("a end = %v, want %v", end, t1)
	}
	if end, _ := b.EndTime(); !end.Equal(t2) {
		t.Errorf("b end = %v, want %v", end, t2)
	}
	if end, _ := nested.EndTime(); !end.Equal(t2) {
		t.Errorf("nested end = %v, want %v", end, t2)
	}
}

func TestTrace_PayloadShape(t *testing.T) {
	tr, _ := NewTrace().Name("rag").StartTime(t0).Version("v2").Attribute("user", "u-1").Create()
	s, _ := tr.NewSpan().Name("retrieve").StartTime(t0).Input(map[string]any{"q": "x"}).Create()
	s.NewGeneration().Name("llm").StartTime(t0).LanguageModelID("gpt-4").Create()
	tr.EndAt(t0.Add(2 * time.Second))

	body, ok := tr.Payload()["trace"].(map[string]any)
	if !ok {
		t.Fatalf("payload has no trace object: %v", tr.Payload())
	}
	if body["name"] != "rag" || body["version"] != "v2" {
		t.Errorf("unexpected trace fields: %v", body)
	}
	if body["start_time"] != "2024-01-01T00:00:00Z" {
		t.Errorf("start_time = %v", body["start_time"])
	}
	if body["duration"] != int64(2000) {
		t.Errorf("duration = %v (%T), want 2000", body["duration"], body["duration"])
	}
	if _, present := body["status"]; present {
		t.Errorf("unset status should be absent, got %v", body["status"])
	}

	spans, _ := body["spans"].([]any)
	if len(spans) != 1 {
		t.Fatalf("spans = %v", body["spans"])
	}
	retrieve := spans[0].(map[string]any)
	if retrieve["span_type"] != SpanTypeSpan {
		t.Errorf("span_type = %v", retrieve["span_type"])
	}
	if _, present := retrieve["output"]; present {
		t.Errorf("unset output should be absent")
	}
	children, _ := retrieve["children"].([]any)
	if len(children) != 1 {
		t.Fatalf("children = %v", retrieve["children"])
	}
	llm := children[0].(map[string]any)
	attrs := llm["attributes"].(map[string]any)
	if llm["span_type"] != SpanTypeGeneration || attrs[AttrLanguageModelID] != "gpt-4" {
		t.Errorf("generation = %v", llm)
	}
}

func TestTrace_UpdateMergesAttributes(t *testing.T) {
	tr, _ := NewTrace().Name("t").Attribute("a", 1).Create()
	tr.Update().Attribute("b", 2).Status(StatusSuccess).Apply()

	attrs := tr.Attributes()
	if attrs["a"] != 1 || attrs["b"] != 2 {
		t.Errorf("attributes = %v", attrs)
	}
	if tr.Status() != StatusSuccess {
		t.Errorf("status = %q", tr.Status())
	}
}

func TestTrace_DeliveredOnEnd(t *testing.T) {
	rec := &recorder{}
	client := newRecordingClient(t, rec)

	tr, _ := client.NewTrace().Name("delivered").Create()
	tr.NewSpan().Name("s").Create()
	if len(rec.all()) != 0 {
		t.Fatal("nothing should be delivered before End")
	}
	tr.End()
	mustFlush(t, client)

	traces := rec.traces()
	if len(traces) != 1 || traces[0]["name"] != "delivered" {
		t.Fatalf("traces = %v", traces)
	}
	if len(spansOf(traces[0], "spans")) != 1 {
		t.Errorf("spans = %v", traces[0]["spans"])
	}
}

func TestTrace_DetachedEndDeliversNothing(t *testing.T) {
	tr, _ := NewTrace().Name("detached").Create()
	if err := tr.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !tr.Ended() {
		t.Error("trace should be ended")
	}
}
