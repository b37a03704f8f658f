// Package ratelimit provides an HTTP client with bounded linear retries,
// Retry-After handling and a circuit breaker, for the remote Quran API.
package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"imanconnect/internal/utils"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultTimeout    = 10 * time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// ErrCircuitOpen is returned without contacting the host while the breaker is open.
var ErrCircuitOpen = errors.New("circuit open: host is failing, try again later")

// Config holds configuration for the retrying HTTP client.
type Config struct {
	// MaxRetries is the total number of attempts per request. Default: 3
	MaxRetries int

	// RetryDelay is the unit of the linear backoff: attempt n waits n×RetryDelay.
	// Default: 1 second
	RetryDelay time.Duration

	// MaxDelay caps the wait, including a server-supplied Retry-After.
	// Default: 30 seconds
	MaxDelay time.Duration

	// Timeout bounds each HTTP round trip. Default: 10 seconds
	Timeout time.Duration

	// Breaker stops requests to a host after repeated failures. Optional.
	Breaker *CircuitBreaker

	// Stats is an optional stats tracker for recording rate limit events.
	Stats *Stats

	// Host name for error messages and logging.
	Host string

	// HTTPClient overrides the underlying client; its Timeout is left alone.
	HTTPClient *http.Client
}

// Client is an HTTP client that retries throttled and failed requests.
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	breaker    *CircuitBreaker
	stats      *Stats
	host       string
	log        *utils.Logger
}

// NewClient creates a new retrying HTTP client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: hc,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		maxDelay:   cfg.MaxDelay,
		breaker:    cfg.Breaker,
		stats:      cfg.Stats,
		host:       cfg.Host,
		log:        utils.GetLogger().Component("http"),
	}
}

// Do performs an HTTP request, retrying on 429, 5xx and transport errors.
// Any other response is returned to the caller as is. After the last attempt
// a 429 yields *RateLimitError and anything else *RetryError.
func (c *Client) Do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("%s: %w", c.hostName(), ErrCircuitOpen)
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		var retryAfter *time.Duration
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			if c.stats != nil {
				c.stats.RecordRateLimit()
			}
			retryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"))
			wait := c.retryDelay
			if retryAfter != nil {
				wait = *retryAfter
			}
			lastErr = &RateLimitError{Host: c.host, RetryAfter: wait, Attempt: attempt, MaxAttempts: c.maxRetries}
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%s returned %s", c.hostName(), resp.Status)
		default:
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return resp, nil
		}

		if attempt == c.maxRetries {
			break
		}
		delay := c.backoff(attempt, retryAfter)
		c.log.Debug("%s attempt %d/%d failed: %v; retrying in %s", c.hostName(), attempt, c.maxRetries, lastErr, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
	var rl *RateLimitError
	if errors.As(lastErr, &rl) {
		return nil, rl
	}
	return nil, &RetryError{Host: c.host, Attempts: c.maxRetries, Err: lastErr}
}

// backoff is linear: attempt × RetryDelay, or Retry-After when given, capped
// at MaxDelay.
func (c *Client) backoff(attempt int, retryAfter *time.Duration) time.Duration {
	delay := c.retryDelay * time.Duration(attempt)
	if retryAfter != nil {
		delay = *retryAfter
	}
	if delay > c.maxDelay {
		delay = c.maxDelay
	}
	return delay
}

func (c *Client) hostName() string {
	if c.host == "" {
		return "API"
	}
	return c.host
}

// RateLimitError is returned when the host keeps answering 429.
type RateLimitError struct {
	Host        string
	RetryAfter  time.Duration
	Attempt     int
	MaxAttempts int
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	host := e.Host
	if host == "" {
		host = "API"
	}
	return fmt.Sprintf("%s rate limit exceeded after %d attempts (max %d)", host, e.Attempt, e.MaxAttempts)
}

// RetryError is returned when every attempt failed for another reason.
type RetryError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	host := e.Host
	if host == "" {
		host = "API"
	}
	return fmt.Sprintf("%s request failed after %d attempts: %v", host, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// ParseRetryAfter parses the Retry-After header value.
// It supports both seconds format (integer) and HTTP-date format.
// Returns nil if the value is invalid or empty.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}

	return nil
}

// Stats tracks rate limit statistics for a host.
type Stats struct {
	mu              sync.RWMutex
	rateLimitCount  int64
	lastRateLimitAt time.Time
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// RecordRateLimit records a rate limit event.
func (s *Stats) RecordRateLimit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitCount++
	s.lastRateLimitAt = time.Now()
}

// RateLimitCount returns the total number of rate limit events.
func (s *Stats) RateLimitCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rateLimitCount
}

// LastRateLimitTime returns the time of the last rate limit event.
func (s *Stats) LastRateLimitTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRateLimitAt
}
