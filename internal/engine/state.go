// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

// =============================================================================
// SEND PIPELINE STATES
// =============================================================================

// State is the send pipeline's position for one session.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateQuotaCheck
	StateSending
	StateStreaming
	StateFinalizing
	StateAborted
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateQuotaCheck:
		return "quota-check"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
