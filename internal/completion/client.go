// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jeranaias/lingua/internal/log"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the completion client.
type ClientConfig struct {
	// BaseURL is the completion service base URL.
	BaseURL string

	// Timeout bounds connection establishment; streaming reads are bounded
	// by the request context, not this value.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8787",
		Timeout: 30 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// DeltaFunc receives each content delta as it arrives. This feeds the live
// typing buffer; nothing is persisted until the terminal frame.
type DeltaFunc func(delta string)

// Client streams chat completions over SSE. Safe for concurrent use.
type Client struct {
	config *ClientConfig
	// Streaming responses have no client timeout; cancellation comes from
	// the request context.
	httpClient *http.Client
	logger     log.Logger
}

// NewClient creates a completion client.
func NewClient(config *ClientConfig, logger log.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8787"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream sends a chat request and consumes the SSE response. onDelta is
// called synchronously for every non-terminal content frame, in arrival
// order. The stream is finite and non-restartable: it ends when the
// transport closes or a done frame arrives, whichever comes first. An error
// frame ends consumption immediately and is surfaced verbatim as *FrameError.
func (c *Client) ChatStream(ctx context.Context, req Request, onDelta DeltaFunc) (*Metadata, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, &ClientError{Type: ErrTypeConnection, Message: "completion request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromStatus(resp)
	}

	return c.consume(ctx, resp.Body, onDelta)
}

// consume drives the SSE stream to termination.
func (c *Client) consume(ctx context.Context, body io.Reader, onDelta DeltaFunc) (*Metadata, error) {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				// Transport closed without a done frame: normal end.
				return nil, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}

		var frame StreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// A single malformed frame never aborts the stream.
			c.logger.Debug("skipping malformed frame", "error", err)
			continue
		}

		if frame.Error != "" {
			return nil, &FrameError{Code: frame.Code, Message: frame.Error}
		}
		if frame.Done {
			return frame.Metadata, nil
		}
		if frame.Content != "" && onDelta != nil {
			onDelta(frame.Content)
		}
	}
}

// errorFromStatus maps a non-200 response to a client error, picking up an
// error frame body when the service sends one.
func (c *Client) errorFromStatus(resp *http.Response) error {
	var frame StreamFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err == nil && frame.Error != "" {
		return &FrameError{Code: frame.Code, Message: frame.Error}
	}
	return &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: "completion request failed: " + resp.Status,
	}
}
