// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package translate provides the best-effort translation overlay.
//
// Translation never blocks or fails a send: any backend rejection, quota
// exhaustion, or local throttle produces an empty result and at most a log
// line. Repeated translations are served from an in-memory cache.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/lingua/internal/log"
)

// =============================================================================
// CLIENT
// =============================================================================

// Config holds translation overlay options.
type Config struct {
	// Enabled turns the overlay on. When false, Translate is a no-op.
	Enabled bool

	// BaseURL is the translation service base URL.
	BaseURL string

	// Timeout bounds each translation request.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests locally. When the
	// limiter has no token available the translation is skipped, never
	// waited for.
	RequestsPerSecond float64
}

// DefaultConfig returns the default overlay configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		BaseURL:           "http://127.0.0.1:8788",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 5,
	}
}

// request is the body sent to the translation service.
type request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage"`
	UserID         string `json:"userId"`
}

// response is the translation service's success body.
type response struct {
	TranslatedText string `json:"translatedText"`
}

// Client calls the translation service. Safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     log.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewClient creates a translation client.
func NewClient(config Config, logger log.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 5
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:     logger,
	}
}

// Translate returns the translated text, or "" when translation is disabled,
// unnecessary (target equals source), throttled, or rejected by the backend.
// It never returns an error to the caller.
func (c *Client) Translate(ctx context.Context, userID, text, targetLang, sourceLang string) string {
	if !c.config.Enabled || text == "" || targetLang == "" || targetLang == sourceLang {
		return ""
	}

	cacheKey := sourceLang + "\x00" + targetLang + "\x00" + text
	c.mu.Lock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	// Best-effort: skip rather than wait when locally throttled.
	if !c.limiter.Allow() {
		c.logger.Debug("translation throttled locally, skipping")
		return ""
	}

	translated := c.call(ctx, request{
		Text:           text,
		TargetLanguage: targetLang,
		SourceLanguage: sourceLang,
		UserID:         userID,
	})
	if translated == "" {
		return ""
	}

	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]string)
	}
	c.cache[cacheKey] = translated
	c.mu.Unlock()

	return translated
}

// call performs one translation request, absorbing every failure mode.
func (c *Client) call(ctx context.Context, req request) string {
	body, err := json.Marshal(req)
	if err != nil {
		return ""
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/translate", bytes.NewReader(body))
	if err != nil {
		return ""
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("translation request failed", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("translation quota exhausted, continuing without translation")
		return ""
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("translation rejected", "status", resp.Status)
		return ""
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logger.Warn("translation response malformed", "error", err)
		return ""
	}
	return out.TranslatedText
}
