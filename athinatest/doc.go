// Package athinatest provides testing utilities for applications using the
// athina-go SDK.
//
// # Mock Server
//
// MockServer records every HTTP request the SDK makes:
//
//	server := athinatest.NewMockServer()
//	defer server.Close()
//
//	client, _ := athina.New("test-key", athina.WithBaseURL(server.URL))
//	// ... use client ...
//	client.Flush(ctx)
//
//	traces := server.RequestsWithPath(athina.PathTrace)
//
// # Test Client
//
// NewTestClient returns a client wired to a mock server and shut down when
// the test ends:
//
//	func TestMyChain(t *testing.T) {
//	    client, server := athinatest.NewTestClient(t)
//
//	    trace, _ := client.NewTrace().Name("test").Create()
//	    trace.End()
//	    client.Flush(context.Background())
//
//	    if server.RequestCount() != 1 {
//	        t.Error("expected 1 request")
//	    }
//	}
//
// # Recording Deliverer
//
// RecordingDeliverer skips HTTP entirely and keeps the decoded payloads.
// Its Delay field simulates a slow backend:
//
//	rec := athinatest.NewRecordingDeliverer()
//	client, _ := athina.New("", athina.WithDeliverer(rec))
//
// # Mock Metrics and Logger
//
// MockMetrics and MockLogger capture what the client reports:
//
//	metrics := athinatest.NewMockMetrics()
//	logger := athinatest.NewMockLogger()
//	client, _ := athina.New("key", athina.WithMetrics(metrics), athina.WithLogger(logger))
package athinatest
