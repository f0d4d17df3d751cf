// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat coordinates the request lifecycle: sessions, provider
// routing, usage counting, and stale-response suppression.
//
// Every outbound request takes a generation token from a monotonic
// counter. Before a reply is committed to the transcript the token is
// compared against the current generation; any action that supersedes the
// request (a newer send, an edit, switching sessions) bumps the counter,
// so the late reply is dropped instead of landing in the wrong place.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"queryquant/internal/model"
	"queryquant/internal/provider"
	"queryquant/internal/router"
	"queryquant/internal/storage"
)

// Error variables for lifecycle failures.
var (
	// ErrSuperseded indicates a reply arrived after a newer action took
	// over and was dropped without touching the transcript.
	ErrSuperseded = errors.New("request superseded")

	// ErrNoSession indicates an operation that needs an active session ran
	// without one.
	ErrNoSession = errors.New("no active session")

	// ErrNothingToRegenerate indicates the transcript holds no user turn
	// to resend.
	ErrNothingToRegenerate = errors.New("nothing to regenerate")

	// ErrEmptyInput indicates a send with neither text nor attachments.
	ErrEmptyInput = errors.New("empty input")
)

// Settings carries the provider configuration for one request.
type Settings struct {
	Provider     router.Provider
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
}

// RouteFunc dispatches one request to a provider backend.
type RouteFunc func(ctx context.Context, p router.Provider, req provider.Request) (string, error)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the active session and drives the request lifecycle.
// Methods are safe for concurrent use; Send blocks for the duration of
// the provider round trip, so interactive callers run it in a goroutine.
type Controller struct {
	sessions *storage.SessionStore
	stats    *storage.StatsStore
	settings func() Settings
	route    RouteFunc

	gen atomic.Uint64

	mu      sync.Mutex
	current *model.Session
}

// NewController creates a controller. The settings function is consulted
// per request, so configuration changes apply without restarting.
func NewController(sessions *storage.SessionStore, stats *storage.StatsStore, settings func() Settings) *Controller {
	return &Controller{
		sessions: sessions,
		stats:    stats,
		settings: settings,
		route:    router.Route,
	}
}

// WithRoute replaces the dispatch function.
func (c *Controller) WithRoute(route RouteFunc) *Controller {
	c.route = route
	return c
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// Current returns the active session, or nil.
func (c *Controller) Current() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Sessions lists all stored sessions, newest first.
func (c *Controller) Sessions() []*model.Session {
	return c.sessions.List()
}

// NewSession creates, persists, and activates a fresh empty session. It
// carries the placeholder title until the first send renames it. Any
// in-flight request is superseded.
func (c *Controller) NewSession() *model.Session {
	c.gen.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked()
}

// EnsureSession guarantees an active session: the current one, the most
// recently stored one, or a fresh empty one when the store holds none.
// Interactive front-ends call this on startup, so the client never runs
// with zero sessions.
func (c *Controller) EnsureSession() *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureLocked()
}

// SelectSession makes a stored session the active one. Any in-flight
// request is superseded.
func (c *Controller) SelectSession(id string) error {
	sess, err := c.sessions.Load(id)
	if err != nil {
		return err
	}
	c.gen.Add(1)
	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
	return nil
}

// DeleteSession removes a stored session. Deleting the active session
// supersedes any in-flight request and hands over to the most recent
// remaining session; deleting the last session creates a fresh empty
// one, so the collection never drops to zero.
func (c *Controller) DeleteSession(id string) error {
	if err := c.sessions.Delete(id); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.ID != id {
		return nil
	}
	c.gen.Add(1)
	c.current = nil
	c.ensureLocked()
	return nil
}

// ensureLocked resolves the active session without creating duplicates:
// current, then the most recently updated stored session, then a fresh
// empty one. Caller holds c.mu.
func (c *Controller) ensureLocked() *model.Session {
	if c.current != nil {
		return c.current
	}
	if list := c.sessions.List(); len(list) > 0 {
		c.current = list[0]
		return c.current
	}
	return c.freshLocked()
}

// freshLocked creates, persists, and activates an empty session. Caller
// holds c.mu.
func (c *Controller) freshLocked() *model.Session {
	sess := model.EmptySession()
	if err := c.sessions.Create(sess); err != nil {
		log.Printf("session create failed: %v", err)
	}
	c.current = sess
	return sess
}

// =============================================================================
// SEND
// =============================================================================

// Send submits one user turn and blocks until the reply is committed,
// dropped, or failed. The usage counter is bumped before the network
// round trip, so a failed query still counts as a query.
func (c *Controller) Send(ctx context.Context, text string, attachments []model.Attachment) (string, error) {
	if text == "" && len(attachments) == 0 {
		return "", ErrEmptyInput
	}

	token := c.gen.Add(1)

	c.mu.Lock()
	sess := c.ensureLocked()
	sess.Retitle(text)
	history := append([]model.Message(nil), sess.Messages...)
	sess.Append(model.NewMessage(model.RoleUser, text, attachments))
	c.persistLocked(sess)
	c.mu.Unlock()

	if err := c.stats.Increment(model.KindInternal); err != nil {
		log.Printf("usage counter update failed: %v", err)
	}

	return c.complete(ctx, token, sess.ID, provider.Request{
		Text:        text,
		Attachments: attachments,
		History:     history,
	})
}

// complete runs the provider round trip and commits the reply under the
// generation guard.
func (c *Controller) complete(ctx context.Context, token uint64, sessionID string, req provider.Request) (string, error) {
	settings := c.settings()
	req.APIKey = settings.APIKey
	req.Model = settings.Model
	req.BaseURL = settings.BaseURL
	req.SystemPrompt = settings.SystemPrompt

	reply, routeErr := c.route(ctx, settings.Provider, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Commit guard: a newer send, edit, or session switch superseded this
	// request while it was in flight.
	if c.gen.Load() != token || c.current == nil || c.current.ID != sessionID {
		return "", ErrSuperseded
	}

	if routeErr != nil {
		c.current.Append(model.NewMessage(model.RoleModel, "Error: "+routeErr.Error(), nil))
		c.persistLocked(c.current)
		return "", routeErr
	}

	c.current.Append(model.NewMessage(model.RoleModel, reply, nil))
	c.persistLocked(c.current)
	return reply, nil
}

// =============================================================================
// REGENERATE / EDIT
// =============================================================================

// Regenerate discards the trailing model turn and resends the last user
// turn, attachments included. When the round trip completes the
// transcript is the same length as before the call. A regenerate is a
// retry of a send that was already counted, so the usage counter is not
// bumped again.
func (c *Controller) Regenerate(ctx context.Context) (string, error) {
	token := c.gen.Add(1)

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	sess := c.current

	if sess.TrailingModelTurn() {
		sess.TruncateBefore(len(sess.Messages) - 1)
	}
	last := sess.LastUserTurn()
	if last == nil {
		c.mu.Unlock()
		return "", ErrNothingToRegenerate
	}
	text, attachments := last.Text, last.Attachments
	history := append([]model.Message(nil), sess.Messages[:len(sess.Messages)-1]...)
	c.persistLocked(sess)
	c.mu.Unlock()

	return c.complete(ctx, token, sess.ID, provider.Request{
		Text:        text,
		Attachments: attachments,
		History:     history,
	})
}

// EditMessage rewrites a past user turn: everything from that turn on is
// truncated, the edited text is resent with the turn's original
// attachments, and any in-flight request is superseded.
func (c *Controller) EditMessage(ctx context.Context, messageID, newText string) (string, error) {
	token := c.gen.Add(1)

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	sess := c.current

	index := sess.IndexOf(messageID)
	if index < 0 {
		c.mu.Unlock()
		return "", fmt.Errorf("message %q: %w", messageID, storage.ErrSessionNotFound)
	}
	if sess.Messages[index].Role != model.RoleUser {
		c.mu.Unlock()
		return "", fmt.Errorf("message %q is not a user turn", messageID)
	}
	attachments := sess.Messages[index].Attachments

	sess.TruncateBefore(index)
	history := append([]model.Message(nil), sess.Messages...)
	sess.Append(model.NewMessage(model.RoleUser, newText, attachments))
	c.persistLocked(sess)
	c.mu.Unlock()

	if err := c.stats.Increment(model.KindInternal); err != nil {
		log.Printf("usage counter update failed: %v", err)
	}

	return c.complete(ctx, token, sess.ID, provider.Request{
		Text:        newText,
		Attachments: attachments,
		History:     history,
	})
}

// persistLocked writes the session through to storage. Caller holds c.mu.
// A failed save is logged and the in-memory transcript stays live, so one
// bad write degrades durability without losing the conversation.
func (c *Controller) persistLocked(sess *model.Session) {
	if err := c.sessions.Update(sess); err != nil {
		if !storage.IsNotFound(err) {
			log.Printf("session save failed: %v", err)
			return
		}
		if err := c.sessions.Create(sess); err != nil {
			log.Printf("session save failed: %v", err)
		}
	}
}
