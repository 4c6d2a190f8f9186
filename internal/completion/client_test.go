// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// sseServer returns a test server writing the given SSE body for POSTs to
// /api/chat.
func sseServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
}

func testClient(url string) *Client {
	return NewClient(&ClientConfig{BaseURL: url}, nil)
}

// =============================================================================
// CHAT STREAM TESTS
// =============================================================================

func TestChatStream_DeltasInOrder(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"content\":\"Hi\"}\n\n"+
		"data: {\"content\":\" there\"}\n\n"+
		"data: {\"content\":\"!\"}\n\n"+
		"data: {\"done\":true,\"metadata\":{\"totalTokens\":42,\"provider\":\"test\"}}\n\n")
	defer srv.Close()

	var got strings.Builder
	meta, err := testClient(srv.URL).ChatStream(context.Background(), Request{
		Messages: []ChatMessage{{Role: "user", Content: "Hello"}},
	}, func(delta string) {
		got.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	if got.String() != "Hi there!" {
		t.Errorf("Accumulated content = %q, want %q", got.String(), "Hi there!")
	}
	if meta == nil || meta.TotalTokens != 42 || meta.Provider != "test" {
		t.Errorf("Metadata = %+v", meta)
	}
}

func TestChatStream_EndsWithoutDoneFrame(t *testing.T) {
	// Transport close without a done frame is a normal end with no metadata.
	srv := sseServer(t, "data: {\"content\":\"partial\"}\n\n")
	defer srv.Close()

	var got strings.Builder
	meta, err := testClient(srv.URL).ChatStream(context.Background(), Request{}, func(delta string) {
		got.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if meta != nil {
		t.Errorf("Metadata = %+v, want nil", meta)
	}
	if got.String() != "partial" {
		t.Errorf("Accumulated content = %q", got.String())
	}
}

func TestChatStream_SkipsMalformedFrames(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"content\":\"good\"}\n\n"+
		"data: {not json]\n\n"+
		"data: {\"content\":\" frames\"}\n\n"+
		"data: {\"done\":true}\n\n")
	defer srv.Close()

	var got strings.Builder
	_, err := testClient(srv.URL).ChatStream(context.Background(), Request{}, func(delta string) {
		got.WriteString(delta)
	})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}
	if got.String() != "good frames" {
		t.Errorf("Accumulated content = %q, want %q", got.String(), "good frames")
	}
}

func TestChatStream_ErrorFrameIsTerminal(t *testing.T) {
	srv := sseServer(t, ""+
		"data: {\"content\":\"before\"}\n\n"+
		"data: {\"error\":\"model unavailable\",\"code\":\"MODEL_DOWN\"}\n\n"+
		"data: {\"content\":\"after\"}\n\n")
	defer srv.Close()

	var got strings.Builder
	_, err := testClient(srv.URL).ChatStream(context.Background(), Request{}, func(delta string) {
		got.WriteString(delta)
	})

	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FrameError, got %v", err)
	}
	if fe.Code != "MODEL_DOWN" || fe.Message != "model unavailable" {
		t.Errorf("FrameError = %+v", fe)
	}
	// Nothing after the error frame is consumed.
	if got.String() != "before" {
		t.Errorf("Accumulated content = %q, want %q", got.String(), "before")
	}
}

func TestChatStream_Non200WithErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(StreamFrame{Error: "upstream down", Code: "BAD_GATEWAY"})
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ChatStream(context.Background(), Request{}, nil)

	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FrameError, got %v", err)
	}
	if fe.Code != "BAD_GATEWAY" {
		t.Errorf("Code = %q, want BAD_GATEWAY", fe.Code)
	}
}

func TestChatStream_RequestBody(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Accept = %q", accept)
		}
		fmt.Fprint(w, "data: {\"done\":true}\n\n")
	}))
	defer srv.Close()

	req := Request{
		Messages:      []ChatMessage{{Role: "user", Content: "hola"}},
		Language:      "es",
		LearningLevel: "beginner",
		UserID:        "user-1",
	}
	if _, err := testClient(srv.URL).ChatStream(context.Background(), req, nil); err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	if got.Language != "es" || got.LearningLevel != "beginner" || got.UserID != "user-1" {
		t.Errorf("Request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hola" {
		t.Errorf("Messages = %+v", got.Messages)
	}
}

func TestChatStream_ContextCancellation(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"content\":\"first\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := testClient(srv.URL).ChatStream(ctx, Request{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestChatStream_ConnectionRefused(t *testing.T) {
	client := NewClient(&ClientConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	}, nil)

	_, err := client.ChatStream(context.Background(), Request{}, nil)

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected ClientError, got %v", err)
	}
	if ce.Type != ErrTypeConnection {
		t.Errorf("Type = %v, want ErrTypeConnection", ce.Type)
	}
}
