// Package httputil provides the shared HTTP client used for provider API calls.
package httputil

import (
	"log/slog"
	"net/http"
	"time"
)

// Default HTTP client configuration values.
const (
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is used when no custom user agent is specified.
	DefaultUserAgent = "dnsbot/1.0"
)

// Observer is notified once per round trip. status is 0 when the request
// failed before a response arrived.
type Observer func(req *http.Request, status int, elapsed time.Duration, err error)

// ClientConfig contains configuration for creating an HTTP client.
type ClientConfig struct {
	// Timeout is the HTTP client timeout. Defaults to 30 seconds.
	Timeout time.Duration

	// UserAgent is the User-Agent header to set on requests.
	// Defaults to "dnsbot/1.0" if not specified.
	UserAgent string

	// Logger enables debug logging for HTTP requests.
	// If nil, no debug logging is performed.
	Logger *slog.Logger

	// Observer receives the outcome of every request, e.g. to feed metrics.
	Observer Observer

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// instrumentedTransport wraps an http.RoundTripper to add the User-Agent
// header, debug logging and the observer callback.
type instrumentedTransport struct {
	base      http.RoundTripper
	userAgent string
	logger    *slog.Logger
	observer  Observer
}

// RoundTrip implements http.RoundTripper.
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}

	if t.logger != nil {
		t.logger.Debug("HTTP request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
		)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	if t.logger != nil && resp != nil {
		t.logger.Debug("HTTP response",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
		)
	}

	if t.observer != nil {
		t.observer(req, status, elapsed, err)
	}

	return resp, err
}

// NewClient creates an HTTP client with the specified configuration.
// If cfg is nil, defaults are used.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &instrumentedTransport{
			base:      base,
			userAgent: userAgent,
			logger:    cfg.Logger,
			observer:  cfg.Observer,
		},
	}
}

// DefaultClient returns a new HTTP client with default settings.
// Equivalent to NewClient(nil).
func DefaultClient() *http.Client {
	return NewClient(nil)
}
