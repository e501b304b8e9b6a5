package athina

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

// Client delivers traces, inference logs and feedback to Athina.
//
// All delivery happens on background workers: ending a trace or logging an
// inference queues the payload and returns at once. Call Shutdown before the
// process exits to drain the queue.
//
// A Client is safe for concurrent use.
type Client struct {
	config   *Config
	logger   StructuredLogger
	dispatch *dispatcher

	hooksMu sync.RWMutex
	hooks   []func(*Trace)

	closed       atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error

	tracesEnded atomic.Int64
	dropped     atomic.Int64
	asyncErrs   atomic.Int64
}

// New creates a new Athina client. An empty apiKey falls back to the key set
// with SetAPIKey.
func New(apiKey string, opts ...ConfigOption) (*Client, error) {
	cfg := &Config{APIKey: apiKey}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a new client from a Config struct.
//
//	client, err := athina.NewWithConfig(&athina.Config{
//	    APIKey:  os.Getenv("ATHINA_API_KEY"),
//	    Workers: 4,
//	})
func NewWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, ErrNilRequest
	}

	cfgCopy := *cfg
	cfgCopy.applyDefaults()
	if err := cfgCopy.validate(); err != nil {
		return nil, err
	}

	var d Deliverer = cfgCopy.Deliverer
	if d == nil {
		d = newHTTPDeliverer(&cfgCopy)
	}

	c := &Client{
		config: &cfgCopy,
		logger: cfgCopy.Logger,
		hooks:  append([]func(*Trace){}, cfgCopy.OnTraceEnded...),
	}
	c.dispatch = newDispatcher(&cfgCopy, d, c.handleAsyncError)
	c.dispatch.start(cfgCopy.Workers)

	c.logger.Debug("athina: client started", "config", cfgCopy.String())
	return c, nil
}

// Logger returns the client's logger.
func (c *Client) Logger() StructuredLogger {
	return c.logger
}

// Environment returns the default environment for inference logs.
func (c *Client) Environment() string {
	return c.config.Environment
}

// OnTraceEnded registers fn to run after every trace closed by this client.
// Hooks run on the goroutine that ended the trace; a panicking hook is
// logged and skipped.
func (c *Client) OnTraceEnded(fn func(*Trace)) {
	c.hooksMu.Lock()
	c.hooks = append(c.hooks, fn)
	c.hooksMu.Unlock()
}

// traceEnded queues a closed trace for delivery and runs the hooks.
func (c *Client) traceEnded(t *Trace, payload map[string]any) {
	c.tracesEnded.Add(1)
	if c.config.Metrics != nil {
		c.config.Metrics.IncrementCounter(MetricTracesEnded, 1)
	}

	c.submit(&DeliveryRequest{Method: http.MethodPost, Path: PathTrace, Body: payload})

	c.hooksMu.RLock()
	hooks := append([]func(*Trace){}, c.hooks...)
	c.hooksMu.RUnlock()
	for _, fn := range hooks {
		c.runHook(fn, t)
	}
}

func (c *Client) runHook(fn func(*Trace), t *Trace) {
	defer func() {
		if r := recover(); r != nil {
			c.handleAsyncError(NewAsyncError(AsyncOpHook, fmt.Errorf("trace hook panicked: %v", r)))
		}
	}()
	fn(t)
}

// submit queues req. Failures are logged and counted, never returned to
// instrumented code.
func (c *Client) submit(req *DeliveryRequest) bool {
	err := c.dispatch.submit(req)
	if err == nil {
		return true
	}
	c.dropped.Add(1)
	if errors.Is(err, ErrQueueFull) {
		c.logger.Warn("athina: delivery queue full, payload dropped", "path", req.Path)
	} else {
		c.logger.Warn("athina: payload dropped", "path", req.Path, "error", err)
	}
	return false
}

// handleAsyncError reports a background failure. Errors are never silently
// dropped: they always reach the logger, and the ErrorHandler if set.
func (c *Client) handleAsyncError(err *AsyncError) {
	c.asyncErrs.Add(1)
	if c.config.Metrics != nil {
		c.config.Metrics.IncrementCounter(MetricAsyncErrors, 1)
	}
	if c.config.ErrorHandler != nil {
		c.config.ErrorHandler(err)
	}
	c.logger.Error("athina: async error", "operation", string(err.Operation), "path", err.Path, "error", err.Err)
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

// Flush blocks until every payload queued so far has been attempted or ctx
// is done.
func (c *Client) Flush(ctx context.Context) error {
	return c.dispatch.flush(ctx)
}

// Shutdown stops accepting payloads, delivers everything already queued and
// waits for the workers to exit. If ctx has no deadline, ShutdownTimeout
// applies. Calling Shutdown again returns the first result.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.closed.Store(true)
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.ShutdownTimeout)
			defer cancel()
		}

		c.dispatch.close()
		if err := c.dispatch.wait(ctx); err != nil {
			c.logger.Warn("athina: shutdown timed out, queued payloads lost", "pending", c.dispatch.pendingCount())
			c.shutdownErr = err
			return
		}
		c.logger.Debug("athina: client shut down")
	})
	return c.shutdownErr
}
