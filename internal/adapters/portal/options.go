package portal

import (
	"net/http"
	"time"

	"github.com/okian/bareme/pkg/logger"
)

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds every single gateway call.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryInterval sets the initial and maximum backoff between retries.
func WithRetryInterval(initial, maxInterval time.Duration) Option {
	return func(c *HTTPClient) {
		if initial > 0 && maxInterval >= initial {
			c.initialInterval = initial
			c.maxInterval = maxInterval
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
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
