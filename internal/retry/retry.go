// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retry wraps an operation with bounded exponential backoff.
//
// The controller is an explicit, bounded state machine (attempt counter plus
// delay function) rather than recursive scheduling, so termination is
// guaranteed and testable.
package retry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Defaults for the controller.
const (
	// DefaultMaxRetries allows 3 retries, i.e. 4 total attempts.
	DefaultMaxRetries = 3

	// DefaultBaseDelay makes the backoff sequence 1s, 2s, 4s.
	DefaultBaseDelay = time.Second
)

// Controller retries a failed operation with exponential backoff. Each retry
// re-runs the full operation; nothing is resumed.
type Controller struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is multiplied by 2^attempt to compute each backoff.
	BaseDelay time.Duration

	// Retryable classifies errors. A nil func retries everything. Failures
	// classified non-retryable surface immediately.
	Retryable func(error) bool

	// attempt is the observable counter: the index of the attempt currently
	// running, reset to zero on success.
	attempt atomic.Int32
}

// New creates a controller with the given classification function.
func New(retryable func(error) bool) *Controller {
	return &Controller{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Retryable:  retryable,
	}
}

// Attempt returns the current attempt index (0 when idle or after success).
func (c *Controller) Attempt() int {
	return int(c.attempt.Load())
}

// Backoff returns the delay applied after a failure of the given attempt.
func (c *Controller) Backoff(attempt int) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base * (1 << attempt)
}

// Do runs op, retrying on retryable failures until MaxRetries is exhausted.
// Backoff sleeps respect ctx. On success the attempt counter resets to zero;
// the final error is returned wrapped once all attempts fail.
func (c *Controller) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		c.attempt.Store(int32(attempt))

		err := op(ctx)
		if err == nil {
			c.attempt.Store(0)
			return nil
		}

		if c.Retryable != nil && !c.Retryable(err) {
			return err
		}

		lastErr = err
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Backoff(attempt)):
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
