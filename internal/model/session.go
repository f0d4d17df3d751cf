// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"

	"queryquant/internal/util"
)

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is a chat transcript with a derived title. Messages is append-only
// under normal operation; editing a past turn truncates the tail first.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// titleRunes is the maximum length of a derived session title.
const titleRunes = 30

// fallbackTitle is used when the first turn has no text, only images.
const fallbackTitle = "Image Query"

// NewChatTitle is the placeholder title a fresh session carries until the
// first input renames it.
const NewChatTitle = "New Chat"

// EmptySession creates a fresh session with no messages and the
// placeholder title.
func EmptySession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Title:     NewChatTitle,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSession creates an empty session titled from the given first input.
func NewSession(firstText string) *Session {
	sess := EmptySession()
	sess.Title = DeriveTitle(firstText)
	return sess
}

// Retitle derives the real title from the first input sent into the
// session. Only an empty session still carrying the placeholder title is
// renamed; a session the user already talked in keeps its title.
func (s *Session) Retitle(firstText string) {
	if len(s.Messages) == 0 && s.Title == NewChatTitle {
		s.Title = DeriveTitle(firstText)
	}
}

// DeriveTitle builds a session title from the first user input: the leading
// runes of the text, or a fixed fallback when the input is image-only.
func DeriveTitle(text string) string {
	if text == "" {
		return fallbackTitle
	}
	runes := []rune(text)
	if len(runes) > titleRunes {
		return string(runes[:titleRunes])
	}
	return text
}

// Append adds a message to the transcript and bumps UpdatedAt.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// TruncateBefore drops the message at index and everything after it.
// Out-of-range indices leave the transcript unchanged.
func (s *Session) TruncateBefore(index int) {
	if index < 0 || index >= len(s.Messages) {
		return
	}
	s.Messages = s.Messages[:index]
	s.UpdatedAt = time.Now()
}

// IndexOf returns the position of the message with the given ID, or -1.
func (s *Session) IndexOf(messageID string) int {
	for i, m := range s.Messages {
		if m.ID == messageID {
			return i
		}
	}
	return -1
}

// LastUserTurn returns the most recent user message, or nil when the
// transcript holds none.
func (s *Session) LastUserTurn() *Message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return &s.Messages[i]
		}
	}
	return nil
}

// TrailingModelTurn reports whether the transcript ends with a model message.
func (s *Session) TrailingModelTurn() bool {
	n := len(s.Messages)
	return n > 0 && s.Messages[n-1].Role == RoleModel
}

// Preview returns a single-line summary of the latest message for list views.
func (s *Session) Preview(maxRunes int) string {
	if len(s.Messages) == 0 {
		return ""
	}
	last := s.Messages[len(s.Messages)-1]
	text := util.CollapseLines(last.Text)
	if text == "" && last.HasAttachments() {
		text = "[image]"
	}
	return util.TruncateRunes(text, maxRunes)
}
