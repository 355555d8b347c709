// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"time"
)

// Dispatch defaults.
const (
	// DefaultMaxRetries is the default retry budget after the first attempt.
	DefaultMaxRetries = 2

	// DefaultBackoff is the default base delay before the first retry.
	DefaultBackoff = 250 * time.Millisecond

	// DefaultTimeout is the default per-attempt time budget.
	DefaultTimeout = 30 * time.Second
)

// RetryConfig bounds the dispatch engine's retry loop.
type RetryConfig struct {
	// MaxRetries is the number of retries allowed after the first attempt.
	// Zero disables retrying; negative values are treated as zero, never as
	// unlimited.
	MaxRetries int

	// Backoff is the base delay before the first retry. The delay before
	// retry i is Backoff * 2^i.
	Backoff time.Duration
}

// DefaultRetryConfig returns the retry configuration used when none is set.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultBackoff,
	}
}

// normalized returns a copy with out-of-range values clamped.
func (c RetryConfig) normalized() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	return c
}

// BackoffFor returns the delay before the retry following the given 0-based
// attempt: Backoff * 2^attempt, with no jitter.
func (c RetryConfig) BackoffFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := c.Backoff
	for range attempt {
		delay *= 2
	}
	return delay
}
