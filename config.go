package athina

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	// DefaultBaseURL is the Athina API endpoint.
	DefaultBaseURL = "https://api.athina.ai"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 1

	// DefaultRetryDelay is the fixed wait between attempts.
	DefaultRetryDelay = 100 * time.Millisecond

	// DefaultWorkers is the number of background delivery workers.
	DefaultWorkers = 2

	// DefaultQueueSize is the capacity of the delivery queue.
	DefaultQueueSize = 256

	// DefaultShutdownTimeout bounds Shutdown when the caller's context has
	// no deadline.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultEnvironment is attached to inference logs that set none.
	DefaultEnvironment = "production"

	// MaxMaxRetries is the maximum allowed retry count.
	MaxMaxRetries = 10

	// MaxWorkers is the maximum allowed worker count.
	MaxWorkers = 64

	// MaxTimeout is the maximum allowed request timeout.
	MaxTimeout = 5 * time.Minute
)

// API paths, relative to Config.BaseURL.
const (
	PathTrace        = "/api/v1/trace/sdk"
	PathInference    = "/api/v1/log/inference"
	PathUserFeedback = "/api/v1/prompt_run/user-feedback"
)

// Config holds the configuration for the Athina client.
type Config struct {
	// APIKey authenticates deliveries. If empty, the process-wide key set
	// with SetAPIKey is used.
	APIKey string

	// BaseURL is the base URL for the Athina API.
	// Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client used under the retrying transport.
	// If nil, a client with Timeout is created.
	HTTPClient *http.Client

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Zero means DefaultMaxRetries; a negative value disables retries.
	MaxRetries int

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration

	// Workers is the number of background delivery workers.
	Workers int

	// QueueSize is the capacity of the delivery queue. Payloads submitted
	// while the queue is full are dropped and logged.
	QueueSize int

	// ShutdownTimeout bounds Shutdown when its context has no deadline.
	ShutdownTimeout time.Duration

	// Debug enables debug logging on the default logger.
	Debug bool

	// Environment is attached to inference logs that set none.
	Environment string

	// Logger receives SDK logs. Defaults to a slog text logger on stderr
	// at warn level, or debug level when Debug is set.
	Logger StructuredLogger

	// Metrics receives SDK telemetry. If nil, nothing is recorded.
	Metrics Metrics

	// ErrorHandler is called with an *AsyncError whenever background work
	// fails. Errors are logged whether or not a handler is set.
	ErrorHandler func(error)

	// Deliverer overrides the HTTP delivery client, mainly for tests.
	Deliverer Deliverer

	// OnTraceEnded hooks run after a trace is closed and queued for
	// delivery.
	OnTraceEnded []func(*Trace)
}

// String returns a representation with the API key masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{APIKey: %q, BaseURL: %q, Timeout: %v, MaxRetries: %d, Workers: %d, QueueSize: %d}",
		MaskAPIKey(c.APIKey),
		c.BaseURL,
		c.Timeout,
		c.MaxRetries,
		c.Workers,
		c.QueueSize,
	)
}

// applyDefaults sets default values for unset configuration options.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	if c.Logger == nil {
		c.Logger = newDefaultLogger(c.Debug)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if c.apiKey() == "" && c.Deliverer == nil {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("athina: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base URL scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
	}
	if c.MaxRetries > MaxMaxRetries {
		return fmt.Errorf("%w: max retries cannot exceed %d, got %d", ErrInvalidConfig, MaxMaxRetries, c.MaxRetries)
	}
	if c.Timeout < 0 || c.Timeout > MaxTimeout {
		return fmt.Errorf("%w: timeout must be between 0 and %v, got %v", ErrInvalidConfig, MaxTimeout, c.Timeout)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative, got %v", ErrInvalidConfig, c.RetryDelay)
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: workers must be between 1 and %d, got %d", ErrInvalidConfig, MaxWorkers, c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be at least 1, got %d", ErrInvalidConfig, c.QueueSize)
	}
	return nil
}
