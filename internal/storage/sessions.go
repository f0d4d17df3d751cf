// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"queryquant/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// ErrSessionNotFound is returned when a session ID has no stored session.
var ErrSessionNotFound = &StoreError{Message: "session not found"}

// SessionStore persists the whole session collection under a single key.
// Every mutation is a read-modify-write of the full collection, so the
// stored value is always a consistent snapshot.
type SessionStore struct {
	store Store
}

// NewSessionStore creates a session store on top of a backend.
func NewSessionStore(store Store) *SessionStore {
	return &SessionStore{store: store}
}

// List returns all sessions, most recently updated first. A missing or
// unreadable collection yields an empty list rather than an error, so a
// fresh install and a corrupted store both start clean.
func (s *SessionStore) List() []*model.Session {
	data, err := s.store.Get(KeySessions)
	if err != nil {
		return []*model.Session{}
	}

	var sessions []*model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return []*model.Session{}
	}
	return sessions
}

// Load returns the session with the given ID, or ErrSessionNotFound.
func (s *SessionStore) Load(id string) (*model.Session, error) {
	for _, sess := range s.List() {
		if sess.ID == id {
			return sess, nil
		}
	}
	return nil, ErrSessionNotFound
}

// Save replaces the entire stored collection.
func (s *SessionStore) Save(sessions []*model.Session) error {
	data, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := s.store.Set(KeySessions, data); err != nil {
		return fmt.Errorf("persist sessions: %w", err)
	}
	return nil
}

// Create prepends a new session to the collection, keeping the newest
// session first.
func (s *SessionStore) Create(sess *model.Session) error {
	sessions := append([]*model.Session{sess}, s.List()...)
	return s.Save(sessions)
}

// Update replaces the stored session with the same ID.
func (s *SessionStore) Update(sess *model.Session) error {
	sessions := s.List()
	found := false
	for i, existing := range sessions {
		if existing.ID == sess.ID {
			sessions[i] = sess
			found = true
			break
		}
	}
	if !found {
		return ErrSessionNotFound
	}
	return s.Save(sessions)
}

// Delete removes the session with the given ID.
func (s *SessionStore) Delete(id string) error {
	sessions := s.List()
	kept := sessions[:0]
	found := false
	for _, sess := range sessions {
		if sess.ID == id {
			found = true
			continue
		}
		kept = append(kept, sess)
	}
	if !found {
		return ErrSessionNotFound
	}
	return s.Save(kept)
}

// IsNotFound reports whether an error means a missing session or key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrKeyNotFound)
}
