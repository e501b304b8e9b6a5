package athina

import (
	"github.com/jdziat/athina-go/internal/config"
)

// Environment variable names read by NewFromEnv and NewFromFile.
const (
	EnvAPIKey      = "ATHINA_API_KEY"
	EnvBaseURL     = "ATHINA_BASE_URL"
	EnvDebug       = "ATHINA_DEBUG"
	EnvEnvironment = "ATHINA_ENVIRONMENT"
)

// NewFromEnv creates a client configured from ATHINA_* environment
// variables. Explicit options are applied after the environment.
//
//	client, err := athina.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
func NewFromEnv(opts ...ConfigOption) (*Client, error) {
	f, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return New(f.APIKey, append(fileOptions(f), opts...)...)
}

// NewFromFile creates a client from a YAML file, with ATHINA_* environment
// variables taking precedence over the file and explicit options taking
// precedence over both. An empty path searches for .athina.yaml in the
// working directory and its parents.
func NewFromFile(path string, opts ...ConfigOption) (*Client, error) {
	if path == "" {
		path = config.FindFile()
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return New(f.APIKey, append(fileOptions(f), opts...)...)
}

func fileOptions(f *config.File) []ConfigOption {
	var opts []ConfigOption
	if f.BaseURL != "" {
		opts = append(opts, WithBaseURL(f.BaseURL))
	}
	if f.Timeout != 0 {
		opts = append(opts, WithTimeout(f.Timeout))
	}
	if f.MaxRetries != 0 {
		opts = append(opts, WithMaxRetries(f.MaxRetries))
	}
	if f.RetryDelay != 0 {
		opts = append(opts, WithRetryDelay(f.RetryDelay))
	}
	if f.Workers != 0 {
		opts = append(opts, WithWorkers(f.Workers))
	}
	if f.QueueSize != 0 {
		opts = append(opts, WithQueueSize(f.QueueSize))
	}
	if f.ShutdownTimeout != 0 {
		opts = append(opts, WithShutdownTimeout(f.ShutdownTimeout))
	}
	if f.Debug {
		opts = append(opts, WithDebug(true))
	}
	if f.Environment != "" {
		opts = append(opts, WithEnvironment(f.Environment))
	}
	return opts
}
