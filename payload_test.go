package athina

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

type tagged struct {
	Name  string `json:"name"`
	Skip  string `json:"-"`
	Empty string `json:"empty,omitempty"`
}

func TestSanitize(t *testing.T) {
	var nilMap map[string]any
	var nilPtr *tagged

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"scalar", 3, "3"},
		{"drops nil map values", map[string]any{"a": 1, "b": nil}, `{"a":1}`},
		{"drops nil slice elements", []any{1, nil, "x"}, `[1,"x"]`},
		{"nested", map[string]any{"m": map[string]any{"x": nil, "y": []any{nil}}}, `{"m":{"y":[]}}`},
		{"nil map", nilMap, "{}"},
		{"nil pointer", nilPtr, "null"},
		{"struct tags", tagged{Name: "n", Skip: "s"}, `{"name":"n"}`},
		{"pointer to struct", &tagged{Name: "p"}, `{"name":"p"}`},
		{"time", t0, `"2024-01-01T00:00:00Z"`},
		{"duration", 1500 * time.Millisecond, "1500"},
		{"error", errors.New("boom"), `"boom"`},
		{"NaN", math.NaN(), `"NaN"`},
		{"bytes", []byte("raw"), `"raw"`},
		{"raw json", json.RawMessage(`{"k":[1,null]}`), `{"k":[1]}`},
		{"messages", []Message{{Role: "user", Content: "hi"}}, `[{"content":"hi","role":"user"}]`},
		{"int keys", map[int]string{1: "a"}, `{"1":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(sanitize(tt.in))
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("sanitize(%v) = %s, want %s", tt.in, b, tt.want)
			}
		})
	}
}

func TestSanitize_UnencodableValues(t *testing.T) {
	out := sanitize(map[string]any{"f": func() {}, "c": complex(1, 2)}).(map[string]any)
	if out["f"] != "<func()>" {
		t.Errorf("func placeholder = %v", out["f"])
	}
	if out["c"] != "<complex128>" {
		t.Errorf("complex placeholder = %v", out["c"])
	}
	if _, err := json.Marshal(out); err != nil {
		t.Errorf("sanitized value must marshal: %v", err)
	}
}

func TestRemoveNil(t *testing.T) {
	got := RemoveNil(map[string]any{"keep": "x", "drop": nil})
	m := got.(map[string]any)
	if len(m) != 1 || m["keep"] != "x" {
		t.Errorf("RemoveNil = %v", m)
	}
}

func TestTime_JSON(t *testing.T) {
	b, _ := json.Marshal(Time{})
	if string(b) != "null" {
		t.Errorf("zero Time = %s, want null", b)
	}
	b, _ = json.Marshal(Time{t0})
	if string(b) != `"2024-01-01T00:00:00Z"` {
		t.Errorf("Time = %s", b)
	}

	var got Time
	if err := json.Unmarshal([]byte(`"2024-01-01T00:00:01.250"`), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !got.Equal(t0.Add(1250 * time.Millisecond)) {
		t.Errorf("parsed = %v", got.Time)
	}
}

func TestSanitize_Cycles(t *testing.T) {
	m := map[string]any{"name": "loop"}
	m["self"] = m
	s := []any{"a", nil}
	s[1] = s

	got, err := json.Marshal(sanitize(map[string]any{"m": m, "s": s}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"m":{"name":"loop","self":"<cycle>"},"s":["a","<cycle>"]}`
	if string(got) != want {
		t.Errorf("sanitize = %s, want %s", got, want)
	}

	// The same value twice side by side is not a cycle.
	shared := map[string]any{"k": 1}
	got, _ = json.Marshal(sanitize([]any{shared, shared}))
	if string(got) != `[{"k":1},{"k":1}]` {
		t.Errorf("shared value = %s", got)
	}
}

func TestSanitize_DepthLimit(t *testing.T) {
	var v any = "leaf"
	for i := 0; i < maxSanitizeDepth+10; i++ {
		v = []any{v}
	}
	out := sanitize(v)
	for i := 0; i < maxSanitizeDepth; i++ {
		next, ok := out.([]any)
		if !ok || len(next) != 1 {
			t.Fatalf("level %d = %#v", i, out)
		}
		out = next[0]
	}
	if out != "<max depth>" {
		t.Errorf("deepest value = %#v", out)
	}
}

func TestTraceEnd_SelfReferencingAttribute(t *testing.T) {
	rec := &recorder{}
	client := newRecordingClient(t, rec)

	tr, _ := client.NewTrace().Name("t").Create()
	m := map[string]any{}
	m["self"] = m
	s, _ := tr.NewSpan().Name("s").Attribute("loop", m).Input(m).Create()
	s.End()
	if err := tr.End(); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	mustFlush(t, client)

	spans := spansOf(rec.traces()[0], "spans")
	if len(spans) != 1 {
		t.Fatalf("spans = %v", spans)
	}
	loop, _ := spans[0]["attributes"].(map[string]any)["loop"].(map[string]any)
	if loop["self"] != "<cycle>" {
		t.Errorf("loop attribute = %v", spans[0]["attributes"])
	}
}
