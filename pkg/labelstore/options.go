package labelstore

import (
	"net/http"
	"time"
)

// ClientOption represents an option for configuring the store client
type ClientOption func(*ClientConfig)

// ClientConfig holds the configuration for the store client
type ClientConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

// DefaultConfig returns a sensible default configuration. The retry policy
// mirrors the platform SDK: three flat attempts one second apart.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Endpoint:      "https://cloud.kili-technology.com/api/label/v2/graphql",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
	}
}

// WithEndpoint sets the GraphQL endpoint of the annotation store
func WithEndpoint(endpoint string) ClientOption {
	return func(c *ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithAPIKey sets the API key sent in the Authorization header
func WithAPIKey(apiKey string) ClientOption {
	return func(c *ClientConfig) {
		c.APIKey = apiKey
	}
}

// WithTimeout sets the per-call deadline
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithRetry sets the retry configuration
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = httpClient
	}
}
