package athina

import (
	"net/http"
	"time"
)

// ConfigOption is a function that modifies a Config.
type ConfigOption func(*Config)

// WithBaseURL sets a custom base URL for the Athina API.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) ConfigOption {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
// Pass a negative value to disable retries.
func WithMaxRetries(maxRetries int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithRetryDelay sets the fixed wait between attempts.
func WithRetryDelay(delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

// WithWorkers sets the number of background delivery workers.
func WithWorkers(n int) ConfigOption {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithQueueSize sets the capacity of the delivery queue.
func WithQueueSize(n int) ConfigOption {
	return func(c *Config) {
		c.QueueSize = n
	}
}

// WithShutdownTimeout sets the default Shutdown bound.
func WithShutdownTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.ShutdownTimeout = timeout
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) ConfigOption {
	return func(c *Config) {
		c.Debug = debug
	}
}

// WithEnvironment sets the default environment for inference logs.
func WithEnvironment(env string) ConfigOption {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger StructuredLogger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithErrorHandler sets an error callback for async failures.
func WithErrorHandler(handler func(error)) ConfigOption {
	return func(c *Config) {
		c.ErrorHandler = handler
	}
}

// WithDeliverer replaces the HTTP delivery client.
func WithDeliverer(d Deliverer) ConfigOption {
	return func(c *Config) {
		c.Deliverer = d
	}
}

// WithOnTraceEnded adds a hook that runs after every trace is closed.
func WithOnTraceEnded(fn func(*Trace)) ConfigOption {
	return func(c *Config) {
		c.OnTraceEnded = append(c.OnTraceEnded, fn)
	}
}
