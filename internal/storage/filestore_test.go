// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"errors"
	"sort"
	"testing"
)

// =============================================================================
// FILE STORE TESTS
// =============================================================================

func TestFileStore_PutGetDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	key := SessionKeyPrefix + "abc"
	value := []byte(`[{"role":"user"}]`)

	if err := store.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get = %s, want %s", got, value)
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(key); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get after delete = %v, want ErrKeyNotFound", err)
	}
}

func TestFileStore_MissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := store.Get("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get = %v, want ErrKeyNotFound", err)
	}
	if err := store.Delete("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Delete = %v, want ErrKeyNotFound", err)
	}
}

func TestFileStore_CapacityExhausted(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Put("a", []byte("12345")); err != nil {
		t.Fatalf("Put within budget failed: %v", err)
	}
	if err := store.Put("b", []byte("123456")); !errors.Is(err, ErrStorageFull) {
		t.Errorf("Put over budget = %v, want ErrStorageFull", err)
	}

	// The failed write must not clobber existing data.
	if _, err := store.Get("a"); err != nil {
		t.Errorf("Existing key lost after full write: %v", err)
	}
	if _, err := store.Get("b"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Rejected key should not exist, got %v", err)
	}
}

func TestFileStore_ReplaceDoesNotDoubleCount(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 10)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Put("a", []byte("1234567890")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	// Rewriting the same key replaces its bytes rather than adding to them.
	if err := store.Put("a", []byte("0987654321")); err != nil {
		t.Errorf("Replace within budget failed: %v", err)
	}
}

func TestFileStore_KeysByPrefix(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	puts := map[string][]byte{
		SessionKeyPrefix + "s1":         []byte("[]"),
		SessionKeyPrefix + "s2":         []byte("[]"),
		UsageKeyPrefix + "u_2025-06-01": []byte("3"),
	}
	for k, v := range puts {
		if err := store.Put(k, v); err != nil {
			t.Fatalf("Put %q failed: %v", k, err)
		}
	}

	keys, err := store.Keys(SessionKeyPrefix)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	want := []string{SessionKeyPrefix + "s1", SessionKeyPrefix + "s2"}
	if len(keys) != 2 || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("Keys = %v, want %v", keys, want)
	}
}
