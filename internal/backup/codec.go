// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backup implements the export/import interchange format and the
// human-readable session exporters.
//
// The interchange document is a single JSON file holding the whole state:
// usage counters, all sessions, a timestamp, and a format version. Import
// is all-or-nothing: the document is fully validated before any stored
// collection is touched.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"queryquant/internal/model"
	"queryquant/internal/storage"
)

// FormatVersion is the interchange format version this build reads and
// writes.
const FormatVersion = 1

// Error variables for import failures.
var (
	// ErrBadDocument indicates the payload is not a valid backup document.
	ErrBadDocument = errors.New("invalid backup document")

	// ErrVersionMismatch indicates an unsupported format version.
	ErrVersionMismatch = errors.New("unsupported backup version")
)

// Document is the interchange format: the full application state in one
// self-describing JSON object. Stats are keyed by calendar day, matching
// how they are stored.
type Document struct {
	Stats     model.StatMap    `json:"stats"`
	Sessions  []*model.Session `json:"sessions"`
	Timestamp time.Time        `json:"timestamp"`
	Version   int              `json:"version"`
}

// FileName returns the canonical backup file name for a given day.
func FileName(t time.Time) string {
	return "queryquant-backup-" + t.Format("2006-01-02") + ".json"
}

// =============================================================================
// EXPORT
// =============================================================================

// Export snapshots the stored state into an interchange document.
func Export(sessions *storage.SessionStore, stats *storage.StatsStore) *Document {
	return &Document{
		Stats:     stats.All(),
		Sessions:  sessions.List(),
		Timestamp: time.Now(),
		Version:   FormatVersion,
	}
}

// Encode serializes a document as indented JSON.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return data, nil
}

// =============================================================================
// IMPORT
// =============================================================================

// Decode parses and validates an interchange document. Nothing is written;
// callers pass the result to Import.
func Decode(data []byte) (*Document, error) {
	// Both top-level collections must be present, not merely empty: a
	// truncated or foreign document must never wipe existing state.
	var probe struct {
		Stats    json.RawMessage `json:"stats"`
		Sessions json.RawMessage `json:"sessions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if probe.Stats == nil {
		return nil, fmt.Errorf("%w: missing stats", ErrBadDocument)
	}
	if probe.Sessions == nil {
		return nil, fmt.Errorf("%w: missing sessions", ErrBadDocument)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// validate checks the document's structural invariants. Version zero is
// accepted for documents written before the field existed.
func (d *Document) validate() error {
	if d.Version != 0 && d.Version != FormatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, d.Version, FormatVersion)
	}
	for key, stat := range d.Stats {
		if _, err := model.ParseDayKey(key); err != nil {
			return fmt.Errorf("%w: bad stat date %q", ErrBadDocument, key)
		}
		if stat.InternalCount < 0 || stat.ExternalCount < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrBadDocument, key)
		}
	}
	for _, sess := range d.Sessions {
		if sess == nil || sess.ID == "" {
			return fmt.Errorf("%w: session without ID", ErrBadDocument)
		}
		for _, msg := range sess.Messages {
			if !msg.Role.Valid() {
				return fmt.Errorf("%w: session %s has message with role %q", ErrBadDocument, sess.ID, msg.Role)
			}
		}
	}
	return nil
}

// Import replaces the stored state with a validated document's contents.
// Both collections are swapped wholesale; existing data is gone after a
// successful import.
func Import(doc *Document, sessions *storage.SessionStore, stats *storage.StatsStore) error {
	if err := doc.validate(); err != nil {
		return err
	}

	statMap := model.StatMap{}
	for key, stat := range doc.Stats {
		stat.Date = key
		statMap[key] = stat
	}

	if err := sessions.Save(doc.Sessions); err != nil {
		return fmt.Errorf("import sessions: %w", err)
	}
	if err := stats.Replace(statMap); err != nil {
		return fmt.Errorf("import stats: %w", err)
	}
	return nil
}
