// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine implements the send pipeline: the state machine that takes
// a user turn through validation, quota check, persistence, streaming, and
// finalization.
//
// One pipeline instance is active per session at any time. Initiating a new
// send while one is in flight first drives the old send to Aborted: its
// context is cancelled, its partial buffer discarded, and no assistant
// message is appended for it.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/lingua/internal/completion"
	"github.com/jeranaias/lingua/internal/log"
	"github.com/jeranaias/lingua/internal/model"
	"github.com/jeranaias/lingua/internal/quota"
	"github.com/jeranaias/lingua/internal/retry"
	"github.com/jeranaias/lingua/internal/storage"
	"github.com/jeranaias/lingua/internal/translate"
)

// =============================================================================
// ENGINE
// =============================================================================

// Options configures the engine's per-user context.
type Options struct {
	// UserID identifies the owning user on every request.
	UserID string

	// Language is the learning language for new sessions (a BCP 47 tag).
	Language string

	// LearningLevel is forwarded to the completion service.
	LearningLevel string

	// TranslateTo is the target language for the translation overlay
	// (typically the user's native language); empty disables the overlay.
	TranslateTo string

	// OnDelta, when set, observes every content delta as it streams in.
	OnDelta func(sessionID, delta string)

	// RetryBaseDelay overrides the retry controller's base backoff (0 keeps
	// the 1s default).
	RetryBaseDelay time.Duration
}

// Engine coordinates the send pipeline across sessions. In-memory session
// state is authoritative; durable writes are best-effort via the session
// store's eviction-and-retry policy.
type Engine struct {
	client     *completion.Client
	sessions   *storage.SessionStore
	limiter    quota.Limiter
	translator *translate.Client
	retrier    *retry.Controller
	logger     log.Logger
	opts       Options

	mu     sync.Mutex
	open   map[string]*model.Session
	states map[string]State
	typing map[string]*TypingBuffer

	inflight *inflightManager
}

// New creates an engine. translator may be nil when the overlay is disabled.
func New(client *completion.Client, sessions *storage.SessionStore, limiter quota.Limiter, translator *translate.Client, opts Options, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	retrier := retry.New(retryable)
	if opts.RetryBaseDelay > 0 {
		retrier.BaseDelay = opts.RetryBaseDelay
	}
	return &Engine{
		client:     client,
		sessions:   sessions,
		limiter:    limiter,
		translator: translator,
		retrier:    retrier,
		logger:     logger,
		opts:       opts,
		open:       make(map[string]*model.Session),
		states:     make(map[string]State),
		typing:     make(map[string]*TypingBuffer),
		inflight:   newInflightManager(),
	}
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// NewSession explicitly creates an empty session.
func (e *Engine) NewSession() *model.Session {
	sess := model.NewSession(e.opts.UserID, e.opts.Language)
	e.mu.Lock()
	e.open[sess.ID] = sess
	e.mu.Unlock()
	return sess
}

// Session returns the in-memory session, loading it from durable storage on
// first access and creating it when no record exists (implicit creation on
// first send).
func (e *Engine) Session(sessionID string) *model.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sess, ok := e.open[sessionID]; ok {
		return sess
	}

	sess := model.NewSession(e.opts.UserID, e.opts.Language)
	if sessionID != "" {
		sess.ID = sessionID
	}
	sess.Messages = e.sessions.Load(sess.ID)
	e.open[sess.ID] = sess
	return sess
}

// ClearSession cancels any in-flight send and destroys the session's
// in-memory and durable state.
func (e *Engine) ClearSession(sessionID string) error {
	e.inflight.cancel(sessionID)

	e.mu.Lock()
	delete(e.open, sessionID)
	delete(e.states, sessionID)
	delete(e.typing, sessionID)
	e.mu.Unlock()

	return e.sessions.Remove(sessionID)
}

// =============================================================================
// OBSERVABLE STATE
// =============================================================================

// State returns the pipeline state for a session.
func (e *Engine) State(sessionID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[sessionID]
}

// Typing returns the live, not-yet-persisted assistant text for a session.
func (e *Engine) Typing(sessionID string) string {
	return e.typingBuffer(sessionID).String()
}

// Attempt reports the retry controller's current attempt index.
func (e *Engine) Attempt() int {
	return e.retrier.Attempt()
}

// Stop cancels the session's in-flight send, if any. Cancellation is not an
// error: the partial reply is discarded and the persisted message list stays
// exactly as it was after the user turn.
func (e *Engine) Stop(sessionID string) {
	e.inflight.cancel(sessionID)
}

// =============================================================================
// SEND PIPELINE
// =============================================================================

// Send runs one user turn through the pipeline and returns the finalized
// assistant message. Empty or whitespace-only input is rejected silently
// with no state mutation. A zero Message with nil error means the send
// produced nothing user-visible (validation rejection or cancellation).
func (e *Engine) Send(ctx context.Context, sessionID, text string) (model.Message, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.Message{}, nil
	}
	e.setState(sessionID, StateValidating)

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	entry := e.inflight.begin(sessionID, cancel)
	defer e.inflight.finish(sessionID, entry)

	sess := e.Session(sessionID)

	e.setState(sess.ID, StateQuotaCheck)
	allowed, resetAt := e.limiter.CheckAndConsume(sess.UserID, time.Now())
	if !allowed {
		e.setState(sess.ID, StateFailed)
		return model.Message{}, &QuotaExceededError{ResetAt: resetAt}
	}

	// The user turn is appended and persisted before dispatch.
	e.setState(sess.ID, StateSending)
	userMsg := model.NewUserMessage(trimmed)
	userMsg.SourceLang = sess.Language
	if e.translator != nil {
		userMsg.Translation = e.translator.Translate(sendCtx, sess.UserID, trimmed, e.opts.TranslateTo, sess.Language)
	}
	sess.Append(userMsg)
	e.persist(sess)

	buf := e.typingBuffer(sess.ID)
	var meta *completion.Metadata
	op := func(ctx context.Context) error {
		// The stream is non-restartable: every attempt re-runs the full
		// network step from an empty buffer.
		buf.Reset()
		e.setState(sess.ID, StateStreaming)
		m, err := e.client.ChatStream(ctx, e.buildRequest(sess), func(delta string) {
			buf.Append(delta)
			if e.opts.OnDelta != nil {
				e.opts.OnDelta(sess.ID, delta)
			}
		})
		if err != nil {
			return err
		}
		meta = m
		return nil
	}

	if err := e.retrier.Do(sendCtx, op); err != nil {
		buf.Reset()
		if errors.Is(err, context.Canceled) {
			e.setState(sess.ID, StateAborted)
			return model.Message{}, nil
		}
		e.setState(sess.ID, StateFailed)
		return model.Message{}, err
	}

	e.setState(sess.ID, StateFinalizing)
	content := buf.String()
	buf.Reset()

	asstMsg := model.NewAssistantMessage(content)
	asstMsg.SourceLang = sess.Language
	if meta != nil && meta.Language != "" {
		asstMsg.SourceLang = meta.Language
	}
	if e.translator != nil {
		asstMsg.Translation = e.translator.Translate(sendCtx, sess.UserID, content, e.opts.TranslateTo, asstMsg.SourceLang)
	}
	sess.Append(asstMsg)
	e.persist(sess)

	e.setState(sess.ID, StateIdle)
	return asstMsg, nil
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// buildRequest converts the session history to the completion wire format.
func (e *Engine) buildRequest(sess *model.Session) completion.Request {
	messages := make([]completion.ChatMessage, 0, len(sess.Messages))
	for _, msg := range sess.Messages {
		messages = append(messages, completion.ChatMessage{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return completion.Request{
		Messages:      messages,
		Language:      sess.Language,
		LearningLevel: e.opts.LearningLevel,
		UserID:        sess.UserID,
	}
}

// persist saves the session's message list. Durability failures are absorbed
// here; in-memory state remains authoritative.
func (e *Engine) persist(sess *model.Session) {
	if err := e.sessions.Save(sess.ID, sess.Messages); err != nil {
		e.logger.Warn("session persist failed", "session", sess.ID, "error", err)
	}
}

func (e *Engine) setState(sessionID string, state State) {
	e.mu.Lock()
	e.states[sessionID] = state
	e.mu.Unlock()
}

func (e *Engine) typingBuffer(sessionID string) *TypingBuffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf, ok := e.typing[sessionID]
	if !ok {
		buf = NewTypingBuffer()
		e.typing[sessionID] = buf
	}
	return buf
}
