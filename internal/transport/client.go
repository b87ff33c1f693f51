// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transport implements the polite, retrying HTTP client that every
// source adapter and the document fetcher share. The retry policy decides
// whether the harvester gets banned by upstream sources, so its ordering is
// strict: honor any active rate-limit cooldown first, then the inter-request
// delay, then issue the request.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paperharvest/pkg/types"
)

// Terminal fetch failures. 404 and 403 are never retried: hammering a
// forbidden endpoint is how crawlers get blocked.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// StatusError reports a non-2xx response that exhausted or bypassed retries.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// jitterMax bounds the random addition to the politeness delay, spreading
// out clients that would otherwise wake in lockstep.
const jitterMax = 100 * time.Millisecond

// Client is a rate-limited HTTP client for one source. Calls are serialized:
// the politeness delay is intentional, so concurrent callers queue behind
// the mutex rather than racing the rate limiter. Independent partitions
// should run on independent Clients.
type Client struct {
	httpClient *http.Client
	policy     types.SourcePolicy
	logger     *zap.Logger

	mu               sync.Mutex
	lastRequest      time.Time
	rateLimitedUntil time.Time
}

// New builds a Client with the given per-source policy. A nil logger
// disables logging.
func New(policy types.SourcePolicy, logger *zap.Logger) *Client {
	policy = policy.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: policy.Timeout},
		policy:     policy,
		logger:     logger,
	}
}

// Get fetches url, retrying transient failures (timeouts, connection errors,
// 5xx) with capped exponential backoff and honoring 429 cooldowns. The
// response body is unread; the caller owns closing it. Returns ErrNotFound
// or ErrForbidden immediately on 404/403 with no retry.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if err := c.waitCooldown(ctx); err != nil {
			return nil, err
		}
		if err := c.waitPoliteness(ctx); err != nil {
			return nil, err
		}
		c.lastRequest = time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("building request for %s: %w", url, err)
		}
		req.Header.Set("User-Agent", c.policy.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Timeout or connection error: retryable.
			lastErr = err
			c.logger.Warn("request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			cooldown := retryAfter(resp, c.policy.CooldownDefault)
			drainClose(resp)
			c.rateLimitedUntil = time.Now().Add(cooldown)
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode}
			c.logger.Warn("rate limited",
				zap.String("url", url),
				zap.Duration("cooldown", cooldown))
			continue

		case resp.StatusCode >= 500:
			drainClose(resp)
			lastErr = &StatusError{URL: url, StatusCode: resp.StatusCode}
			c.logger.Warn("server error",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode == http.StatusNotFound:
			drainClose(resp)
			c.logger.Warn("not found", zap.String("url", url))
			return nil, fmt.Errorf("%s: %w", url, ErrNotFound)

		case resp.StatusCode == http.StatusForbidden:
			drainClose(resp)
			c.logger.Error("access forbidden", zap.String("url", url))
			return nil, fmt.Errorf("%s: %w", url, ErrForbidden)

		default:
			drainClose(resp)
			c.logger.Error("unexpected status",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode))
			return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
		}
	}

	return nil, fmt.Errorf("all %d attempts failed for %s: %w",
		c.policy.MaxRetries+1, url, lastErr)
}

// waitCooldown sleeps out an active 429 cooldown.
func (c *Client) waitCooldown(ctx context.Context) error {
	wait := time.Until(c.rateLimitedUntil)
	if wait <= 0 {
		return nil
	}
	c.logger.Warn("waiting out rate-limit cooldown", zap.Duration("wait", wait))
	return sleep(ctx, wait)
}

// waitPoliteness enforces MinDelay since the previous request, plus jitter.
func (c *Client) waitPoliteness(ctx context.Context) error {
	if c.lastRequest.IsZero() {
		return nil
	}
	elapsed := time.Since(c.lastRequest)
	if elapsed >= c.policy.MinDelay {
		return nil
	}
	wait := c.policy.MinDelay - elapsed + rand.N(jitterMax)
	return sleep(ctx, wait)
}

// backoff sleeps base * 2^attempt, capped at BackoffCap.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.policy.BackoffBase << uint(attempt)
	if delay > c.policy.BackoffCap || delay <= 0 {
		delay = c.policy.BackoffCap
	}
	return sleep(ctx, delay)
}

// sleep waits for d or until the context finishes, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryAfter reads the Retry-After hint from a 429 response, in seconds.
func retryAfter(resp *http.Response, fallback time.Duration) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

// drainClose discards the body so the connection can be reused.
func drainClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
