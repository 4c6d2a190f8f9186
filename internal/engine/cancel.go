// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"sync"
)

// =============================================================================
// IN-FLIGHT SEND TRACKING
// =============================================================================

// inflight is one active send: its cancel function plus a done channel the
// replacement send can wait on so the old pipeline fully unwinds first.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// inflightManager tracks at most one active send per session. Accessed from
// the caller initiating a new send and from the pipeline tearing down, so
// all operations take the mutex.
type inflightManager struct {
	mu    sync.Mutex
	sends map[string]*inflight
}

func newInflightManager() *inflightManager {
	return &inflightManager{sends: make(map[string]*inflight)}
}

// begin registers a new send for the session, first cancelling and waiting
// out any prior in-flight send. Returns the entry to complete when done.
func (m *inflightManager) begin(sessionID string, cancel context.CancelFunc) *inflight {
	m.mu.Lock()
	prev := m.sends[sessionID]
	entry := &inflight{cancel: cancel, done: make(chan struct{})}
	m.sends[sessionID] = entry
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}
	return entry
}

// finish marks the send complete and clears it if still current.
func (m *inflightManager) finish(sessionID string, entry *inflight) {
	m.mu.Lock()
	if m.sends[sessionID] == entry {
		delete(m.sends, sessionID)
	}
	m.mu.Unlock()
	close(entry.done)
}

// cancel stops the session's in-flight send, if any. Safe to call at any time.
func (m *inflightManager) cancel(sessionID string) {
	m.mu.Lock()
	entry := m.sends[sessionID]
	m.mu.Unlock()
	if entry != nil {
		entry.cancel()
	}
}
