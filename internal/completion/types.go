// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion provides the HTTP client for the completion service and
// the consumer for its server-sent event stream.
package completion

import (
	"errors"
	"fmt"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one turn in the request history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is the body sent to the completion service.
type Request struct {
	Messages      []ChatMessage `json:"messages"`
	Language      string        `json:"language"`
	LearningLevel string        `json:"learningLevel"`
	UserID        string        `json:"userId"`
}

// Metadata arrives with the terminal frame of a stream.
type Metadata struct {
	TotalTokens   int    `json:"totalTokens"`
	Language      string `json:"language"`
	LearningLevel string `json:"learningLevel"`
	Provider      string `json:"provider"`
}

// StreamFrame is one decoded event from the response stream: a content
// delta, a terminal signal with metadata, or an error.
type StreamFrame struct {
	Content  string    `json:"content"`
	Done     bool      `json:"done"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Error    string    `json:"error,omitempty"`
	Code     string    `json:"code,omitempty"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeInvalidResponse
)

// ClientError represents a transport-level error from the completion client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// FrameError is an explicit error frame from the backend. It is a deliberate
// signal, terminates the send immediately, and is never retried.
type FrameError struct {
	Code    string
	Message string
}

func (e *FrameError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("completion error [%s]: %s", e.Code, e.Message)
	}
	return "completion error: " + e.Message
}

// IsFrameError checks whether err carries an error frame from the backend.
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}
