package delivery

import (
	"net/http"
	"time"

	"github.com/okian/beacon/pkg/logger"
)

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAPIKey sets the API key sent with every request.
func WithAPIKey(key string) Option {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxRetries caps the total number of network attempts per Send.
func WithMaxRetries(n int) Option {
	return func(c *HTTPClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay sets the backoff base delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxJitter caps the random jitter added to each backoff delay.
func WithMaxJitter(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d >= 0 {
			c.maxJitter = d
		}
	}
}

// WithRequestTimeout bounds each individual network attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithSleeper injects the blocking sleep used between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *HTTPClient) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithRandSource injects the jitter random source; must return [0, 1).
func WithRandSource(rng func() float64) Option {
	return func(c *HTTPClient) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *HTTPClient) {
		if l != nil {
			c.logger = l
		}
	}
}
