package athinatest

import (
	"context"
	"time"

	"github.com/jdziat/athina-go"
)

// TestingT is an interface that matches *testing.T and *testing.B.
type TestingT interface {
	Fatalf(format string, args ...any)
	Cleanup(func())
	Helper()
}

// TestAPIKey is the API key used by test clients.
const TestAPIKey = "athina-test-key"

// NewTestClient creates a client backed by a MockServer. Retries are
// disabled so a failing response is recorded exactly once. The client and
// server are cleaned up when the test ends.
func NewTestClient(t TestingT, opts ...athina.ConfigOption) (*athina.Client, *MockServer) {
	t.Helper()

	server := NewMockServer()

	baseOpts := []athina.ConfigOption{
		athina.WithBaseURL(server.URL),
		athina.WithMaxRetries(-1),
		athina.WithTimeout(5 * time.Second),
		athina.WithLogger(athina.NopLogger{}),
	}

	client, err := athina.New(TestAPIKey, append(baseOpts, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create test client: %v", err)
	}

	t.Cleanup(func() {
		client.Shutdown(context.Background())
		server.Close()
	})

	return client, server
}

// NewRecordingClient creates a client that delivers into a
// RecordingDeliverer instead of over HTTP.
func NewRecordingClient(t TestingT, opts ...athina.ConfigOption) (*athina.Client, *RecordingDeliverer) {
	t.Helper()

	rec := NewRecordingDeliverer()
	baseOpts := []athina.ConfigOption{
		athina.WithDeliverer(rec),
		athina.WithLogger(athina.NopLogger{}),
	}

	client, err := athina.New("", append(baseOpts, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create recording client: %v", err)
	}

	t.Cleanup(func() {
		client.Shutdown(context.Background())
	})

	return client, rec
}
