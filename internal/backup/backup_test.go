// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryquant/internal/model"
	"queryquant/internal/storage"
)

func seededStores(t *testing.T) (*storage.SessionStore, *storage.StatsStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	sessions := storage.NewSessionStore(store)
	stats := storage.NewStatsStore(store)

	sess := model.NewSession("seeded session")
	sess.Append(model.NewMessage(model.RoleUser, "hello", nil))
	sess.Append(model.NewMessage(model.RoleModel, "hi there", nil))
	require.NoError(t, sessions.Create(sess))

	require.NoError(t, stats.Replace(model.StatMap{
		"2025-06-01": {Date: "2025-06-01", InternalCount: 3, ExternalCount: 1},
		"2025-06-02": {Date: "2025-06-02", InternalCount: 7},
	}))
	return sessions, stats
}

func TestExportImportRoundTrip(t *testing.T) {
	sessions, stats := seededStores(t)

	doc := Export(sessions, stats)
	data, err := doc.Encode()
	require.NoError(t, err)

	// Import into fresh stores and compare state.
	store2 := storage.NewMemoryStore()
	sessions2 := storage.NewSessionStore(store2)
	stats2 := storage.NewStatsStore(store2)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.NoError(t, Import(decoded, sessions2, stats2))

	assert.Equal(t, stats.All(), stats2.All())

	orig := sessions.List()
	restored := sessions2.List()
	require.Len(t, restored, len(orig))
	assert.Equal(t, orig[0].ID, restored[0].ID)
	assert.Equal(t, orig[0].Title, restored[0].Title)
	require.Len(t, restored[0].Messages, 2)
	assert.Equal(t, "hello", restored[0].Messages[0].Text)

	// Exporting the restored state yields the same document body.
	doc2 := Export(sessions2, stats2)
	assert.Equal(t, doc.Stats, doc2.Stats)
	assert.Equal(t, doc.Version, doc2.Version)
}

func TestExportDocumentShape(t *testing.T) {
	sessions, stats := seededStores(t)

	doc := Export(sessions, stats)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.False(t, doc.Timestamp.IsZero())
	require.Len(t, doc.Stats, 2)
	assert.Equal(t, 3, doc.Stats["2025-06-01"].InternalCount)
	assert.Equal(t, 1, doc.Stats["2025-06-01"].ExternalCount)
}

func TestImportReplacesExistingState(t *testing.T) {
	sessions, stats := seededStores(t)

	doc := &Document{
		Stats: model.StatMap{
			"2024-01-15": {InternalCount: 2},
		},
		Sessions:  []*model.Session{model.NewSession("imported only")},
		Timestamp: time.Now(),
		Version:   FormatVersion,
	}
	require.NoError(t, Import(doc, sessions, stats))

	list := sessions.List()
	require.Len(t, list, 1)
	assert.Equal(t, "imported only", list[0].Title)
	want := model.StatMap{
		"2024-01-15": {Date: "2024-01-15", InternalCount: 2},
	}
	assert.Equal(t, want, stats.All())
}

func TestDecodeRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", "{broken", ErrBadDocument},
		{"missing stats", `{"sessions":[],"version":1}`, ErrBadDocument},
		{"missing sessions", `{"stats":{},"version":1}`, ErrBadDocument},
		{"wrong version", `{"stats":{},"sessions":[],"version":2}`, ErrVersionMismatch},
		{"bad stat date", `{"stats":{"June 1":{"date":"June 1","internalCount":1}},"sessions":[],"version":1}`, ErrBadDocument},
		{"negative count", `{"stats":{"2025-06-01":{"date":"2025-06-01","internalCount":-3}},"sessions":[],"version":1}`, ErrBadDocument},
		{"session without id", `{"stats":{},"sessions":[{"id":"","title":"x"}],"version":1}`, ErrBadDocument},
		{"bad message role", `{"stats":{},"sessions":[{"id":"s1","messages":[{"id":"m1","role":"assistant","text":"x"}]}],"version":1}`, ErrBadDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeAcceptsMinimalDocument(t *testing.T) {
	// An empty-but-complete document is valid; the version field may be
	// absent in older exports.
	doc, err := Decode([]byte(`{"stats":{},"sessions":[]}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Stats)
	assert.Empty(t, doc.Sessions)
}

func TestImportLeavesStateUntouchedOnInvalidDocument(t *testing.T) {
	sessions, stats := seededStores(t)
	before := stats.All()

	doc := &Document{
		Stats:    model.StatMap{"not-a-date": {InternalCount: 1}},
		Sessions: nil,
		Version:  FormatVersion,
	}
	err := Import(doc, sessions, stats)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadDocument))

	assert.Equal(t, before, stats.All())
	assert.Len(t, sessions.List(), 1)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 8, 31, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "queryquant-backup-2025-08-31.json", FileName(ts))
}

// =============================================================================
// EXPORTERS
// =============================================================================

func exportableSession() *model.Session {
	sess := model.NewSession("code review")
	sess.Append(model.NewMessage(model.RoleUser, "review this:\n```go\nfunc main() {}\n```", nil))
	sess.Append(model.NewMessage(model.RoleModel, "Looks fine.", nil))
	sess.Append(model.NewMessage(model.RoleUser, "", []model.Attachment{
		{MimeType: "image/png", Data: "QQ=="},
	}))
	sess.Append(model.NewMessage(model.RoleUser, "and this one", []model.Attachment{
		model.NewImageAttachment("diagram.png", "image/png", "Qg=="),
	}))
	return sess
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter().Export(exportableSession())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "# code review")
	assert.Contains(t, md, "### You")
	assert.Contains(t, md, "### Model")
	assert.Contains(t, md, "```go")
	assert.Contains(t, md, "*[image attachment]*")
	assert.Contains(t, md, "*[image: diagram.png]*")
	assert.Contains(t, md, "generator: queryquant")
}

func TestMarkdownExportRejectsEmptySession(t *testing.T) {
	_, err := NewMarkdownExporter().Export(model.NewSession("empty"))
	assert.Error(t, err)

	_, err = NewMarkdownExporter().Export(nil)
	assert.Error(t, err)
}

func TestHTMLExport(t *testing.T) {
	out, err := NewHTMLExporter().Export(exportableSession())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<title>code review</title>")
	assert.Contains(t, page, "user-message")
	assert.Contains(t, page, "model-message")
	// Chroma emits inline-styled pre blocks for the fenced Go snippet.
	assert.Contains(t, page, "<pre")
	assert.Contains(t, page, "[image attachment]")
	assert.Contains(t, page, "[diagram.png]")
}

func TestHTMLExportEscapesContent(t *testing.T) {
	sess := model.NewSession("<script>alert(1)</script>")
	sess.Append(model.NewMessage(model.RoleUser, "is <b>this</b> escaped?", nil))

	out, err := NewHTMLExporter().Export(sess)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;b&gt;this&lt;/b&gt;")
}
