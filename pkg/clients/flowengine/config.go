package flowengine

import (
	"net/http"
	"time"
)

type ClientConfig struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	DefaultHeaders map[string]string
	UserAgent      string
	// Token is sent as a bearer token when the engine requires authentication.
	Token string
}

func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://localhost:8081",
		Timeout:        30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     time.Second,
		DefaultHeaders: map[string]string{"Content-Type": "application/json"},
		UserAgent:      "flowengine-go-client/1.0",
	}
}

type ClientOption func(*ClientConfig)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) {
		c.BaseURL = baseURL
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *ClientConfig) {
		c.HTTPClient = client
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithRetry sets how often 5xx responses and transport failures are retried.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

func WithHeader(key, value string) ClientOption {
	return func(c *ClientConfig) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = map[string]string{}
		}
		c.DefaultHeaders[key] = value
	}
}

func WithUserAgent(userAgent string) ClientOption {
	return func(c *ClientConfig) {
		c.UserAgent = userAgent
	}
}

func WithToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
	}
}
