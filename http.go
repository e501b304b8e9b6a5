package athina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// userAgent is sent with every delivery.
const userAgent = "athina-go/" + Version

// DeliveryRequest is one payload bound for the Athina API.
type DeliveryRequest struct {
	// Method is the HTTP method, POST or PATCH.
	Method string

	// Path is relative to Config.BaseURL, e.g. PathTrace.
	Path string

	// Body is marshaled as JSON.
	Body any
}

// Deliverer sends a payload to the Athina API. Implementations are called
// from background workers, never from the instrumented code path.
type Deliverer interface {
	Deliver(ctx context.Context, req *DeliveryRequest) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, req *DeliveryRequest) error

// Deliver calls f(ctx, req).
func (f DelivererFunc) Deliver(ctx context.Context, req *DeliveryRequest) error {
	return f(ctx, req)
}

// httpDeliverer delivers payloads over HTTP with a bounded, fixed-delay retry.
type httpDeliverer struct {
	client  *retryablehttp.Client
	baseURL string
	apiKey  func() string
}

// newHTTPDeliverer builds the default Deliverer for cfg.
func newHTTPDeliverer(cfg *Config) *httpDeliverer {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cfg.HTTPClient
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryDelay
	rc.RetryWaitMax = cfg.RetryDelay
	rc.Backoff = fixedBackoff
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = retryLogger{cfg.Logger}

	return &httpDeliverer{
		client:  rc,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.apiKey,
	}
}

// fixedBackoff waits exactly min between attempts.
func fixedBackoff(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
	return min
}

// Deliver implements Deliverer.
func (h *httpDeliverer) Deliver(ctx context.Context, req *DeliveryRequest) error {
	if req == nil {
		return ErrNilRequest
	}
	body, err := json.Marshal(req.Body)
	if err != nil {
		return fmt.Errorf("athina: failed to marshal request body: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, h.baseURL+req.Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("athina: failed to create request: %w", err)
	}
	httpReq.Header.Set("athina-api-key", h.apiKey())
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("athina: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("athina: failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if len(respBody) > 0 {
			if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil {
				apiErr.ErrorMessage = strings.TrimSpace(string(respBody))
			}
		}
		return apiErr
	}
	return nil
}

// retryLogger routes retryablehttp's leveled logs to the SDK logger.
// Per-attempt chatter goes to debug so only final outcomes are visible
// at the default level.
type retryLogger struct {
	l StructuredLogger
}

func (r retryLogger) Error(msg string, kv ...any) { r.l.Warn(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...any)  { r.l.Debug(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...any) { r.l.Debug(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...any)  { r.l.Debug(msg, kv...) }

var _ retryablehttp.LeveledLogger = retryLogger{}
