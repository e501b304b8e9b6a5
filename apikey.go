package athina

import "sync"

var globalKey struct {
	mu  sync.RWMutex
	key string
}

// SetAPIKey sets the process-wide API key used by every client whose
// Config.APIKey is empty.
func SetAPIKey(key string) {
	globalKey.mu.Lock()
	globalKey.key = key
	globalKey.mu.Unlock()
}

// APIKey returns the process-wide API key.
func APIKey() string {
	globalKey.mu.RLock()
	defer globalKey.mu.RUnlock()
	return globalKey.key
}

// apiKey resolves the key for a delivery: the client's own key wins.
func (c *Config) apiKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return APIKey()
}
