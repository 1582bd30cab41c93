package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/snow-status-aggregation/internal/resort"
)

const (
	// DefaultUserAgent identifies this service to upstreams that accept it.
	DefaultUserAgent = "snow-status-aggregation/1.0 (+https://github.com/i474232898/snow-status-aggregation)"

	// BrowserUserAgent is sent to vendors known to reject non-browser clients.
	BrowserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultTimeout = 9 * time.Second
	maxBodyBytes   = 8 << 20
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Config bundles the HTTP client and resilience settings.
type Config struct {
	Client    *http.Client
	Timeout   time.Duration // per attempt
	UserAgent string
	Backoff   BackoffConfig
}

var (
	// ErrCircuitOpen is wrapped into FetchError when an upstream host is tripped.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
	errInvalidURL    = errors.New("invalid url")
)

// Client performs GET requests with a per-attempt timeout, retries with
// exponential backoff and one circuit breaker per upstream host.
type Client struct {
	cfg      Config
	breakers *breakerSet
}

type breakerSet struct {
	mu sync.Mutex
	m  map[string]*gobreaker.CircuitBreaker
}

// New creates a Client. A zero Timeout falls back to the default.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff.InitialInterval = 500 * time.Millisecond
	}
	return &Client{
		cfg:      cfg,
		breakers: &breakerSet{m: make(map[string]*gobreaker.CircuitBreaker)},
	}
}

// WithRetries returns a copy sharing the breakers but with a different retry budget.
func (c *Client) WithRetries(n int) *Client {
	cfg := c.cfg
	cfg.Backoff.MaxRetries = n
	return &Client{cfg: cfg, breakers: c.breakers}
}

// Get fetches rawURL and returns the body. Failures are returned as
// *resort.FetchError or *resort.TimeoutError.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	safeURL := RedactURL(rawURL)
	if c.cfg.Client == nil {
		return nil, &resort.FetchError{URL: safeURL, Err: errNoHTTPClient}
	}
	if c.cfg.Backoff.MaxRetries < 0 {
		return nil, &resort.FetchError{URL: safeURL, Err: errInvalidConfig}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &resort.FetchError{URL: safeURL, Err: errInvalidURL}
	}
	cb := c.breaker(u.Host)

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, c.classify(ctx, safeURL, ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			body, err := c.once(ctx, rawURL, safeURL, header)
			if err != nil && ctx.Err() != nil {
				// The caller gave up; the host is not to blame.
				return nil, callerAborted{err}
			}
			return body, err
		})
		var aborted callerAborted
		if errors.As(err, &aborted) {
			return nil, aborted.error
		}
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, &resort.FetchError{URL: safeURL, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &resort.FetchError{URL: safeURL, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
		}

		if !retryable(err) || attempt >= c.cfg.Backoff.MaxRetries {
			return nil, err
		}

		// Backoff with exponential delay.
		delay := c.cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.cfg.Backoff.MaxInterval && c.cfg.Backoff.MaxInterval > 0 {
			delay = c.cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, c.classify(ctx, safeURL, ctx.Err())
		case <-timer.C:
		}

		attempt++
	}
}

// GetJSON fetches rawURL and decodes the body into v. A body that is not
// valid JSON is reported as *resort.ParseError.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, v interface{}) error {
	body, err := c.Get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &resort.ParseError{Source: RedactURL(rawURL), Reason: "decode json", Err: err}
	}
	return nil
}

// once performs one attempt. Errors only ever carry safeURL.
func (c *Client) once(ctx context.Context, rawURL, safeURL string, header http.Header) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, &resort.FetchError{URL: safeURL, Err: errInvalidURL}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return nil, c.classify(attemptCtx, safeURL, err)
	}
	defer resp.Body.Close()

	// Handle rate limiting and server errors explicitly.
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &resort.FetchError{URL: safeURL, StatusCode: resp.StatusCode, Err: errRateLimited}
	case resp.StatusCode >= 500:
		return nil, &resort.FetchError{URL: safeURL, StatusCode: resp.StatusCode, Err: errServerError}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &resort.FetchError{URL: safeURL, StatusCode: resp.StatusCode, Err: errUnexpected}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.classify(attemptCtx, safeURL, err)
	}
	return body, nil
}

func (c *Client) classify(ctx context.Context, safeURL string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &resort.TimeoutError{URL: safeURL, After: c.cfg.Timeout}
	}
	// *url.Error repeats the full request URL.
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return &resort.FetchError{URL: safeURL, Err: err}
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker {
	c.breakers.mu.Lock()
	defer c.breakers.mu.Unlock()

	if cb, ok := c.breakers.m[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: hostHealthy,
	})
	c.breakers.m[host] = cb
	return cb
}

// callerAborted marks a failure caused by the caller's own context.
type callerAborted struct{ error }

func (e callerAborted) Unwrap() error { return e.error }

// hostHealthy reports whether an outcome says nothing bad about the host.
// Caller cancellations and client errors other than 429 do not count
// towards tripping the breaker.
func hostHealthy(err error) bool {
	if err == nil {
		return true
	}
	var aborted callerAborted
	if errors.As(err, &aborted) || errors.Is(err, context.Canceled) {
		return true
	}
	var fe *resort.FetchError
	if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 && fe.StatusCode != http.StatusTooManyRequests {
		return true
	}
	return false
}

var secretParams = map[string]bool{
	"key":          true,
	"apikey":       true,
	"api_key":      true,
	"appid":        true,
	"token":        true,
	"access_token": true,
}

// RedactURL masks credentials in rawURL so it can be logged or returned in errors.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.User = nil
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if secretParams[strings.ToLower(k)] {
				q.Set(k, "REDACTED")
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	var fe *resort.FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == 0 || fe.StatusCode == http.StatusTooManyRequests || fe.StatusCode >= 500
	}
	var te *resort.TimeoutError
	return errors.As(err, &te)
}
