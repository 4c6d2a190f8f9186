// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// USAGE RECORD
// =============================================================================

// UsageRecord tracks one user's message count for one calendar day. Count is
// monotonically non-decreasing within a day and reinitializes to 1 the first
// time "now" passes ResetAt.
type UsageRecord struct {
	UserID  string    `json:"user_id"`
	Date    string    `json:"date"` // ISO date, e.g. "2025-06-01"
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Expired reports whether the record's reset time has passed.
func (u *UsageRecord) Expired(now time.Time) bool {
	return now.After(u.ResetAt)
}

// UsageDate formats a time as the ISO calendar date used in storage keys.
func UsageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
