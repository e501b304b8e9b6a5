// Package config loads athina client settings from a YAML file and
// ATHINA_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "ATHINA"

// File is the on-disk and environment form of the client configuration.
// Zero values mean "not set" and leave the client defaults in place.
type File struct {
	APIKey          string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"MAX_RETRIES"`
	RetryDelay      time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY"`
	Workers         int           `yaml:"workers" envconfig:"WORKERS"`
	QueueSize       int           `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Debug           bool          `yaml:"debug" envconfig:"DEBUG"`
	Environment     string        `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// FileNames are the names FindFile looks for.
var FileNames = []string{".athina.yaml", ".athina.yml"}

// Load reads path (if non-empty), expands ${VAR} references in the API key
// and then applies environment overrides.
func Load(path string) (*File, error) {
	f := &File{}
	if path != "" {
		if err := loadFromFile(f, path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	f.APIKey = expandEnvVar(f.APIKey)
	if err := applyEnv(f); err != nil {
		return nil, err
	}
	return f, nil
}

// FromEnv returns the settings found in the environment only.
func FromEnv() (*File, error) {
	return Load("")
}

// FindFile searches the working directory and its parents for one of
// FileNames and returns the first match, or "".
func FindFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		for _, name := range FileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func loadFromFile(f *File, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, f)
}

func applyEnv(f *File) error {
	if err := envconfig.Process(EnvPrefix, f); err != nil {
		return fmt.Errorf("failed to read %s_* environment: %w", EnvPrefix, err)
	}
	return nil
}

var envRef = regexp.MustCompile(`\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?`)

// expandEnvVar expands ${VAR} and $VAR references.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimPrefix(name, "$")
		name = strings.TrimSuffix(name, "}")
		return os.Getenv(name)
	})
}
