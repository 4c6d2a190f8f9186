// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"strings"
	"sync"
)

// =============================================================================
// TYPING BUFFER
// =============================================================================

// TypingBuffer accumulates streamed deltas for the in-progress assistant
// reply. It is the live, observable "typing" view: its content is never a
// Message until the terminal frame arrives, and it is discarded wholesale on
// cancellation.
//
// Thread-safety: deltas arrive from the streaming goroutine while readers
// poll from elsewhere, so all operations take the mutex.
type TypingBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewTypingBuffer creates an empty buffer.
func NewTypingBuffer() *TypingBuffer {
	return &TypingBuffer{}
}

// Append adds a delta to the buffer.
func (b *TypingBuffer) Append(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(delta)
}

// String returns the accumulated content so far.
func (b *TypingBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Len returns the accumulated length in bytes.
func (b *TypingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// Reset discards everything accumulated so far.
func (b *TypingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
