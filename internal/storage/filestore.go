// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/lingua/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// DefaultMaxBytes is the default byte budget for a store (1 MiB, roughly the
// quota browsers grant a single origin's local storage).
const DefaultMaxBytes = 1 << 20

// FileStore persists each key as one JSON file under BaseDir.
type FileStore struct {
	// BaseDir is the directory holding one file per key.
	BaseDir string

	// MaxBytes caps the total stored size (0 = DefaultMaxBytes).
	MaxBytes int64
}

// NewFileStore creates a file-backed store rooted at baseDir.
func NewFileStore(baseDir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &FileStore{BaseDir: baseDir, MaxBytes: maxBytes}, nil
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put writes the value for key atomically. Returns ErrStorageFull when the
// write would push total stored bytes past MaxBytes.
func (s *FileStore) Put(key string, value []byte) error {
	used, err := s.usedBytes(key)
	if err != nil {
		return err
	}
	if used+int64(len(value)) > s.MaxBytes {
		return ErrStorageFull
	}
	return util.AtomicWriteFile(s.filePath(key), value, 0644)
}

// Delete removes the key, or returns ErrKeyNotFound.
func (s *FileStore) Delete(key string) error {
	if err := os.Remove(s.filePath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrKeyNotFound
		}
		return err
	}
	return nil
}

// Keys returns all stored keys with the given prefix.
func (s *FileStore) Keys(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// usedBytes sums stored sizes, excluding the file that key would replace.
func (s *FileStore) usedBytes(replacing string) (int64, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	skip := replacing + ".json"
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || entry.Name() == skip {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// filePath returns the file path for a key.
func (s *FileStore) filePath(key string) string {
	return filepath.Join(s.BaseDir, key+".json")
}
