package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrCircuitOpen is returned while an upstream's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrNotConfigured is returned by clients whose API key is missing.
var ErrNotConfigured = errors.New("upstream not configured")

type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s api: %d", e.Service, e.Status)
}

type circuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openedAt  time.Time
	cooldown  time.Duration
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

func (c *circuitBreaker) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures < c.threshold {
		return true
	}
	if time.Since(c.openedAt) > c.cooldown {
		c.failures = 0
		c.openedAt = time.Time{}
		return true
	}
	return false
}

func (c *circuitBreaker) success() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.openedAt = time.Time{}
}

func (c *circuitBreaker) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold {
		c.openedAt = time.Now()
	}
}

// httpJSON is the shared GET-and-decode client behind every vendor client.
type httpJSON struct {
	service  string
	baseURL  string
	hc       *http.Client
	cb       *circuitBreaker
	attempts int
	backoff  time.Duration
	log      zerolog.Logger
}

type httpOptions struct {
	Service     string
	BaseURL     string
	Timeout     time.Duration
	FailLimit   int
	Cooldown    time.Duration
	Log         zerolog.Logger
	HTTPClient  *http.Client
	MaxAttempts int
}

func newHTTPJSON(o httpOptions) *httpJSON {
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	attempts := o.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &httpJSON{
		service:  o.Service,
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		hc:       hc,
		cb:       newCircuitBreaker(o.FailLimit, o.Cooldown),
		attempts: attempts,
		backoff:  300 * time.Millisecond,
		log:      o.Log,
	}
}

// getJSON issues GET baseURL+path?query and decodes the body into out.
// Transport errors and 5xx/429 replies are retried with linear backoff;
// other 4xx replies fail immediately.
func (c *httpJSON) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if !c.cb.allow() {
		return fmt.Errorf("%s: %w", c.service, ErrCircuitOpen)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.cb.fail()
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				c.cb.fail()
				return ctx.Err()
			}
			continue
		}

		if res.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
			res.Body.Close()
			lastErr = &UpstreamError{Service: c.service, Status: res.StatusCode, Body: string(body)}
			if res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
				// Bad symbol, bad key: retrying will not help and the upstream is healthy.
				return lastErr
			}
			c.log.Warn().Str("service", c.service).Int("status", res.StatusCode).Int("attempt", attempt+1).Msg("upstream error")
			continue
		}

		err = json.NewDecoder(res.Body).Decode(out)
		res.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%s: decode response: %w", c.service, err)
			continue
		}
		c.cb.success()
		return nil
	}

	c.cb.fail()
	return lastErr
}
