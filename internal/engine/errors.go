// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/lingua/internal/completion"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// QuotaExceededError is returned when the daily allowance is used up. It is
// terminal and never retried.
type QuotaExceededError struct {
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily message quota exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// IsQuotaExceeded checks whether err is a quota denial.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// retryable classifies a network-step failure. Quota denials, explicit
// backend error frames, and cancellation are never retried; everything else
// is treated as transient.
func retryable(err error) bool {
	if IsQuotaExceeded(err) || completion.IsFrameError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
