// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hola")

	if msg.ID == "" {
		t.Error("Expected generated ID")
	}
	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "hola" {
		t.Errorf("Content = %q, want %q", msg.Content, "hola")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if !msg.IsUser() {
		t.Error("IsUser() should be true for user messages")
	}
}

func TestNewMessage_UniqueIDs(t *testing.T) {
	a := NewUserMessage("one")
	b := NewUserMessage("one")
	if a.ID == b.ID {
		t.Errorf("Expected distinct IDs, both were %q", a.ID)
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short", "hola", 10, "hola"},
		{"exact", "12345", 5, "12345"},
		{"truncated", "hello world", 8, "hello..."},
		{"newlines flattened", "hola\nmundo", 20, "hola mundo"},
		{"unicode", "こんにちは世界です", 7, "こんにち..."},
		{"tiny max", "hello", 2, "he"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{Content: tt.content}
			if got := msg.Preview(tt.maxLen); got != tt.want {
				t.Errorf("Preview(%d) = %q, want %q", tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestMessage_JSONOmitsEmptyTranslation(t *testing.T) {
	msg := NewAssistantMessage("bonjour")
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "translation") {
		t.Errorf("Empty translation should be omitted, got %s", data)
	}

	msg.Translation = "hello"
	msg.SourceLang = "fr"
	data, err = json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Translation != "hello" || decoded.SourceLang != "fr" {
		t.Errorf("Round trip lost overlay fields: %+v", decoded)
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestNewSession(t *testing.T) {
	sess := NewSession("user-1", "es")

	if sess.ID == "" {
		t.Error("Expected generated ID")
	}
	if sess.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", sess.UserID, "user-1")
	}
	if sess.Language != "es" {
		t.Errorf("Language = %q, want %q", sess.Language, "es")
	}
	if !sess.IsEmpty() {
		t.Error("New session should be empty")
	}
}

func TestSession_AppendPreservesOrder(t *testing.T) {
	sess := NewSession("user-1", "es")

	contents := []string{"first", "second", "third", "fourth"}
	for i, c := range contents {
		if i%2 == 0 {
			sess.Append(NewUserMessage(c))
		} else {
			sess.Append(NewAssistantMessage(c))
		}
	}

	if sess.MessageCount() != len(contents) {
		t.Fatalf("MessageCount = %d, want %d", sess.MessageCount(), len(contents))
	}
	for i, msg := range sess.Messages {
		if msg.Content != contents[i] {
			t.Errorf("Messages[%d].Content = %q, want %q", i, msg.Content, contents[i])
		}
	}
}

func TestSession_TitleFromFirstUserMessage(t *testing.T) {
	sess := NewSession("user-1", "es")
	sess.Append(NewUserMessage("¿Cómo se dice 'library' en español?"))
	sess.Append(NewAssistantMessage("Se dice 'biblioteca'."))

	if sess.Title != "¿Cómo se dice 'library' en español?" {
		t.Errorf("Title = %q", sess.Title)
	}

	// Title is set once and never replaced.
	sess.Append(NewUserMessage("different question"))
	if sess.Title != "¿Cómo se dice 'library' en español?" {
		t.Errorf("Title changed on later append: %q", sess.Title)
	}
}

func TestSession_LastActivity(t *testing.T) {
	sess := NewSession("user-1", "es")

	// Empty session falls back to UpdatedAt.
	if got := sess.LastActivity(); !got.Equal(sess.UpdatedAt) {
		t.Errorf("LastActivity = %v, want %v", got, sess.UpdatedAt)
	}

	msg := NewUserMessage("hola")
	msg.CreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sess.Append(msg)

	if got := sess.LastActivity(); !got.Equal(msg.CreatedAt) {
		t.Errorf("LastActivity = %v, want last message time %v", got, msg.CreatedAt)
	}
}

// =============================================================================
// USAGE RECORD TESTS
// =============================================================================

func TestUsageDate(t *testing.T) {
	// UsageDate normalizes to UTC before formatting.
	loc := time.FixedZone("UTC+9", 9*3600)
	ts := time.Date(2025, 6, 2, 3, 0, 0, 0, loc) // 2025-06-01T18:00Z

	if got := UsageDate(ts); got != "2025-06-01" {
		t.Errorf("UsageDate = %q, want %q", got, "2025-06-01")
	}
}

func TestUsageRecord_Expired(t *testing.T) {
	rec := UsageRecord{ResetAt: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)}

	if rec.Expired(time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)) {
		t.Error("Record should not be expired before ResetAt")
	}
	if !rec.Expired(time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)) {
		t.Error("Record should be expired after ResetAt")
	}
}
