// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleModel:
		return "Model"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// AttachmentKindImage is the only attachment kind the client handles.
const AttachmentKindImage = "image"

// Attachment is an inline image carried alongside a message. Data holds the
// raw image bytes base64-encoded without any data-URI prefix; Name is the
// original file name, kept for display.
type Attachment struct {
	Kind     string `json:"type"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
	Name     string `json:"name,omitempty"`
}

// NewImageAttachment builds an image attachment from an encoded payload.
func NewImageAttachment(name, mimeType, data string) Attachment {
	return Attachment{
		Kind:     AttachmentKindImage,
		MimeType: mimeType,
		Data:     data,
		Name:     name,
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a session transcript.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, text string, attachments []Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        role,
		Text:        text,
		Attachments: attachments,
		Timestamp:   time.Now(),
	}
}

// HasAttachments reports whether the message carries any images.
func (m Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}
