// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions, messages, and
// usage statistics.
//
// This package defines the core domain types used throughout the application
// for representing chat sessions, their transcripts, and the per-day query
// counters behind the dashboard.
//
// # Key Types
//
//   - Session: Container for a chat transcript with title and timestamps
//   - Message: Single turn with role, text, attachments, and timestamp
//   - Attachment: Inline image carried alongside a message
//   - DailyStat: Query count for one calendar day
//   - Role: Message role enumeration (user, model)
//
// # Usage
//
// Create a new session and append a turn:
//
//	sess := model.NewSession("Hello!")
//	sess.Append(model.Message{
//	    Role: model.RoleUser,
//	    Text: "Hello!",
//	})
package model
