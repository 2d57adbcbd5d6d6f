/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubreconciler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
)

// RetryConfig configures how rate limited API calls are retried.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. 0 disables
	// retrying.
	MaxRetries int
	// BaseBackoff is the first wait; it doubles on every retry.
	BaseBackoff time.Duration
	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of random delay added to every wait.
	MaxJitter time.Duration
}

// Validate checks that the retry configuration has valid values.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max retries cannot be negative")
	case c.BaseBackoff < 0:
		return errors.New("base backoff cannot be negative")
	case c.MaxBackoff < 0:
		return errors.New("max backoff cannot be negative")
	case c.MaxJitter < 0:
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultRetryConfig suits GitHub's secondary rate limits, which usually
// clear within a minute.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  5,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// IsRateLimited reports whether err is a primary or secondary GitHub rate
// limit error.
func IsRateLimited(err error) bool {
	var rle *github.RateLimitError
	var are *github.AbuseRateLimitError
	return errors.As(err, &rle) || errors.As(err, &are)
}

// retryRateLimited runs fn and retries it with exponential backoff for as long
// as it fails with a rate limit error. A secondary rate limit that names a
// RetryAfter wins over the computed backoff.
func retryRateLimited[T any](ctx context.Context, cfg RetryConfig, operation string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !IsRateLimited(lastErr) {
			return result, lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
		var are *github.AbuseRateLimitError
		if errors.As(lastErr, &are) && are.RetryAfter != nil {
			backoff = *are.RetryAfter
		}

		var jitter time.Duration
		if cfg.MaxJitter > 0 {
			if n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter))); err == nil {
				jitter = time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", backoff+jitter).
			With("error", lastErr.Error()).
			Warn("GitHub rate limit hit, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
}
