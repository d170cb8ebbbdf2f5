// Package ghapi provides GitHub API client functionality.
//
// This file (core_retry.go) implements retry logic with exponential backoff for GitHub API calls.
// It handles secondary rate limits, primary rate limit rejections and transient server or
// network errors. It also holds the fixed inter-request Throttle used by mutating loops.
package ghapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/pterm/pterm"
)

// RetryPolicy bounds retries of a single API call.
type RetryPolicy struct {
	MaxAttempts      int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	MinSecondaryWait time.Duration
	MaxSecondaryWait time.Duration
}

// DefaultRetryPolicy matches GitHub's guidance for secondary rate limits.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:      3,
	BaseBackoff:      1 * time.Second,
	MaxBackoff:       30 * time.Second,
	MinSecondaryWait: 60 * time.Second,
	MaxSecondaryWait: 15 * time.Minute,
}

// Do runs fn, retrying secondary rate limits and transient failures.
// op names the call in log lines.
func (c *Client) Do(ctx context.Context, op string, fn func() (*github.Response, error)) (*github.Response, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		resp *github.Response
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		resp, err = fn()
		if err == nil {
			return resp, nil
		}
		if attempt == attempts-1 {
			break
		}

		wait, reason, retry := c.retryDelay(err, attempt)
		if !retry {
			break
		}
		pterm.Warning.Printf("⚠ %s for %s, retrying in %v (attempt %d/%d)\n",
			reason, op, wait.Round(time.Millisecond), attempt+1, attempts)
		if serr := sleepCtx(ctx, wait); serr != nil {
			return resp, serr
		}
	}
	return resp, err
}

func (c *Client) retryDelay(err error, attempt int) (time.Duration, string, bool) {
	if !IsRateLimited(err) {
		if isTransient(err) {
			return c.backoff(attempt), "Transient error", true
		}
		return 0, "", false
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return *abuse.RetryAfter, "Secondary rate limit hit", true
		}
		return c.secondaryBackoff(attempt), "Secondary rate limit hit", true
	}

	var primary *github.RateLimitError
	errors.As(err, &primary)
	wait := time.Until(primary.Rate.Reset.Time) + time.Second
	if wait < c.retry.BaseBackoff {
		wait = c.retry.BaseBackoff
	}
	return wait, "Rate limit exhausted", true
}

func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.retry.BaseBackoff
	if d > c.retry.MaxBackoff {
		d = c.retry.MaxBackoff
	}
	return d
}

func (c *Client) secondaryBackoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * c.retry.MinSecondaryWait
	if d > c.retry.MaxSecondaryWait {
		d = c.retry.MaxSecondaryWait
	}
	return d
}

// isTransient checks if an error is worth retrying (502/503/504, timeouts, resets).
func isTransient(err error) bool {
	switch StatusCode(err) {
	case 502, 503, 504:
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseRetryAfter parses the Retry-After HTTP header value.
//
// The header can be either an integer number of seconds or an HTTP date.
// Falls back to fallback if parsing fails.
func parseRetryAfter(value string, fallback time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return time.Until(t)
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DefaultThrottleDelay spaces mutating calls to stay clear of secondary
// rate limits.
const DefaultThrottleDelay = 1100 * time.Millisecond

// Throttle enforces a minimum delay between consecutive calls.
type Throttle struct {
	Delay time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewThrottle returns a Throttle with the given delay.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{Delay: delay, now: time.Now}
}

// Wait blocks until Delay has passed since the previous Wait returned.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.now == nil {
		t.now = time.Now
	}
	if !t.last.IsZero() {
		if err := sleepCtx(ctx, t.Delay-t.now().Sub(t.last)); err != nil {
			return fmt.Errorf("throttle: %w", err)
		}
	}
	t.last = t.now()
	return nil
}
