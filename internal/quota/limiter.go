// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quota gates sends with a per-user, per-day message allowance.
package quota

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/lingua/internal/log"
	"github.com/jeranaias/lingua/internal/model"
	"github.com/jeranaias/lingua/internal/storage"
)

// DefaultDailyLimit is the default number of messages a user may send per day.
const DefaultDailyLimit = 50

// Limiter gates sends. Implementations cannot fail, only deny.
type Limiter interface {
	// CheckAndConsume consumes one unit of the user's daily allowance.
	// When denied, resetAt reports when the allowance reinitializes and no
	// state is mutated.
	CheckAndConsume(userID string, now time.Time) (allowed bool, resetAt time.Time)
}

// =============================================================================
// DAILY LIMITER
// =============================================================================

// DailyLimiter tracks one counter per (user, calendar day), durably mirrored
// at `chat_usage_<user>_<isoDate>`. This is a single-instance design: the
// in-memory records are authoritative and a shared, externally-consistent
// store would be needed for multi-instance deployments.
type DailyLimiter struct {
	mu      sync.Mutex
	limit   int
	store   storage.Store
	records map[string]*model.UsageRecord
	logger  log.Logger
}

// NewDailyLimiter creates a limiter with the given daily limit, persisting
// counters through store (which may be nil for a purely in-memory limiter).
func NewDailyLimiter(limit int, store storage.Store, logger log.Logger) *DailyLimiter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &DailyLimiter{
		limit:   limit,
		store:   store,
		records: make(map[string]*model.UsageRecord),
		logger:  logger,
	}
}

// CheckAndConsume implements Limiter. The mutex makes check and increment a
// single atomic step; a denial has no side effects.
func (l *DailyLimiter) CheckAndConsume(userID string, now time.Time) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	date := model.UsageDate(now)
	rec := l.records[userID]

	if rec == nil || rec.Date != date || rec.Expired(now) {
		rec = l.freshRecord(userID, date, now)
		l.records[userID] = rec
	}

	if rec.Count >= l.limit {
		return false, rec.ResetAt
	}

	rec.Count++
	l.persist(rec)
	return true, rec.ResetAt
}

// freshRecord lazily creates the day's record. A counter persisted earlier
// the same day (by a previous process) is adopted so restarts don't reset
// the allowance; its reset time is the start of the next UTC day since only
// the integer counter is durable.
func (l *DailyLimiter) freshRecord(userID, date string, now time.Time) *model.UsageRecord {
	rec := &model.UsageRecord{
		UserID:  userID,
		Date:    date,
		Count:   0,
		ResetAt: now.Add(24 * time.Hour),
	}

	if l.store != nil {
		if data, err := l.store.Get(usageKey(userID, date)); err == nil {
			if count, err := strconv.Atoi(string(data)); err == nil && count > 0 {
				rec.Count = count
				rec.ResetAt = startOfNextDay(now)
			}
		}
	}
	return rec
}

// persist mirrors the counter to durable storage. Persistence failures are
// logged, never surfaced: the limiter only denies, it does not fail.
func (l *DailyLimiter) persist(rec *model.UsageRecord) {
	if l.store == nil {
		return
	}
	key := usageKey(rec.UserID, rec.Date)
	if err := l.store.Put(key, []byte(strconv.Itoa(rec.Count))); err != nil &&
		!errors.Is(err, storage.ErrStorageFull) {
		l.logger.Warn("usage counter write failed", "key", key, "error", err)
	}
}

// usageKey builds the durable key for a user's daily counter.
func usageKey(userID, date string) string {
	return storage.UsageKeyPrefix + userID + "_" + date
}

// startOfNextDay returns midnight UTC following t.
func startOfNextDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
