// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable key/value persistence for lingua.
//
// Two backends implement the Store interface: a file-per-key store with
// atomic writes, and a SQLite store. Both enforce a byte budget so callers
// can exercise the eviction path when capacity is exhausted. The persisted
// layout is fixed: `chat_session_<id>` holds a JSON array of messages and
// `chat_usage_<user>_<isoDate>` holds an integer counter.
package storage

import "errors"

// Key prefixes for the persisted-state layout.
const (
	SessionKeyPrefix = "chat_session_"
	UsageKeyPrefix   = "chat_usage_"
)

// Sentinel errors for store operations.
var (
	// ErrKeyNotFound is returned by Get and Delete for missing keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStorageFull is returned by Put when the write would exceed the
	// store's byte budget. Callers evict and retry.
	ErrStorageFull = errors.New("storage capacity exhausted")
)

// Store is a durable key/value mapping. Implementations must make Put
// all-or-nothing: a failed write leaves the previous value intact.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Put writes the value for key, replacing any previous value. Returns
	// ErrStorageFull when the write would exceed capacity.
	Put(key string, value []byte) error

	// Delete removes the key, or returns ErrKeyNotFound.
	Delete(key string) error

	// Keys returns all keys with the given prefix, in no particular order.
	Keys(prefix string) ([]string, error)
}
