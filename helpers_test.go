package athina

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// recorder is an in-memory Deliverer. Bodies are decoded from JSON so tests
// see exactly what would go on the wire.
type recorder struct {
	delay time.Duration
	err   error

	mu   sync.Mutex
	reqs []recorded
}

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func (r *recorder) Deliver(ctx context.Context, req *DeliveryRequest) error {
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	raw, err := json.Marshal(req.Body)
	if err != nil {
		return err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return err
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, recorded{method: req.Method, path: req.Path, body: body})
	r.mu.Unlock()
	return r.err
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.reqs...)
}

// traces returns the "trace" object of every trace delivery.
func (r *recorder) traces() []map[string]any {
	var out []map[string]any
	for _, req := range r.all() {
		if req.path != PathTrace {
			continue
		}
		if tr, ok := req.body["trace"].(map[string]any); ok {
			out = append(out, tr)
		}
	}
	return out
}

func newRecordingClient(t *testing.T, rec *recorder, opts ...ConfigOption) *Client {
	t.Helper()
	base := []ConfigOption{WithDeliverer(rec), WithLogger(NopLogger{})}
	client, err := New("", append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		client.Shutdown(context.Background())
	})
	return client
}

func mustFlush(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func spansOf(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, s := range raw {
		if sm, ok := s.(map[string]any); ok {
			out = append(out, sm)
		}
	}
	return out
}

// logCapture is a StructuredLogger that keeps every message.
type logCapture struct {
	mu      sync.Mutex
	entries []string
}

func (l *logCapture) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, level+" "+msg)
	l.mu.Unlock()
}

func (l *logCapture) Debug(msg string, args ...any) { l.add("DEBUG", msg) }
func (l *logCapture) Info(msg string, args ...any)  { l.add("INFO", msg) }
func (l *logCapture) Warn(msg string, args ...any)  { l.add("WARN", msg) }
func (l *logCapture) Error(msg string, args ...any) { l.add("ERROR", msg) }

func (l *logCapture) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e == entry {
			return true
		}
	}
	return false
}
