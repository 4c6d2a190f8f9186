// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jeranaias/lingua/internal/log"
	"github.com/jeranaias/lingua/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// DefaultMaxSessions is how many sessions eviction retains.
const DefaultMaxSessions = 10

// SessionStore persists each session's ordered message list under the
// `chat_session_<id>` key. Writes that hit the store's capacity trigger one
// eviction-and-retry; a second failure drops the write silently, leaving
// in-memory state authoritative for the rest of the process lifetime.
type SessionStore struct {
	store       Store
	maxSessions int
	logger      log.Logger
}

// NewSessionStore wraps a Store with session persistence and eviction.
func NewSessionStore(store Store, maxSessions int, logger log.Logger) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SessionStore{store: store, maxSessions: maxSessions, logger: logger}
}

// Load returns the ordered message list for a session. A missing or corrupt
// key yields an empty list; corruption is logged, never raised.
func (s *SessionStore) Load(sessionID string) []model.Message {
	data, err := s.store.Get(SessionKeyPrefix + sessionID)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("session load failed", "session", sessionID, "error", err)
		}
		return []model.Message{}
	}

	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		s.logger.Warn("corrupt session record, starting empty", "session", sessionID, "error", err)
		return []model.Message{}
	}
	return msgs
}

// Save writes the full message list for a session. On ErrStorageFull it
// evicts down to the retention cap and retries exactly once; if the retry
// also fails the write is dropped with a log.
func (s *SessionStore) Save(sessionID string, msgs []model.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}

	key := SessionKeyPrefix + sessionID
	err = s.store.Put(key, data)
	if !errors.Is(err, ErrStorageFull) {
		return err
	}

	s.logger.Info("storage full, evicting oldest sessions", "keep", s.maxSessions)
	s.EvictOldest(s.maxSessions)

	if err := s.store.Put(key, data); err != nil {
		// Durability is lost for this session until a future write succeeds.
		s.logger.Warn("session write dropped after eviction retry", "session", sessionID, "error", err)
	}
	return nil
}

// EvictOldest removes stored sessions beyond the keep most recently updated,
// ranked by the timestamp of each session's last message.
func (s *SessionStore) EvictOldest(keep int) {
	keys, err := s.store.Keys(SessionKeyPrefix)
	if err != nil || len(keys) <= keep {
		return
	}

	type ranked struct {
		key  string
		last time.Time
	}
	entries := make([]ranked, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, ranked{key: key, last: s.lastTimestamp(key)})
	}

	// Most recent first; everything past keep is evicted.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].last.After(entries[j].last)
	})
	for _, entry := range entries[keep:] {
		if err := s.store.Delete(entry.key); err != nil && !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("eviction delete failed", "key", entry.key, "error", err)
		}
	}
}

// Remove deletes a session's durable record. Missing records are not an error.
func (s *SessionStore) Remove(sessionID string) error {
	err := s.store.Delete(SessionKeyPrefix + sessionID)
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	return err
}

// Count returns the number of persisted sessions.
func (s *SessionStore) Count() int {
	keys, err := s.store.Keys(SessionKeyPrefix)
	if err != nil {
		return 0
	}
	return len(keys)
}

// lastTimestamp returns the creation time of a stored session's last
// message, or the zero time when the record is empty or unreadable.
func (s *SessionStore) lastTimestamp(key string) time.Time {
	data, err := s.store.Get(key)
	if err != nil {
		return time.Time{}
	}
	var msgs []model.Message
	if err := json.Unmarshal(data, &msgs); err != nil || len(msgs) == 0 {
		return time.Time{}
	}
	return msgs[len(msgs)-1].CreatedAt
}
