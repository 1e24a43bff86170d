package provider

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError represents an HTTP-level failure from a quote backend.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

type options struct {
	baseURL      string
	timeout      time.Duration
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// Option configures a backend client.
type Option func(*options)

// WithBaseURL overrides the backend endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max
		o.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func defaultOptions(baseURL string) options {
	return options{
		baseURL:      baseURL,
		timeout:      30 * time.Second,
		maxRetries:   3,
		retryBackoff: time.Second,
		logger:       slog.Default(),
	}
}

// newRestClient builds a resty client that retries on 429 and 5xx with
// exponential backoff, and treats everything else as terminal.
func newRestClient(o options) *resty.Client {
	rc := resty.New().
		SetBaseURL(o.baseURL).
		SetTimeout(o.timeout).
		SetRetryCount(o.maxRetries).
		SetRetryWaitTime(o.retryBackoff).
		SetRetryMaxWaitTime(o.retryBackoff * 8).
		SetHeader("User-Agent", "marketsync/1.0")

	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil || r == nil {
			return false
		}
		return r.StatusCode() == 429 || r.StatusCode() >= 500
	})

	return rc
}
