// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"queryquant/internal/chat"
	"queryquant/internal/config"
	"queryquant/internal/model"
	"queryquant/internal/provider"
	"queryquant/internal/router"
	"queryquant/internal/storage"
)

func testModel(t *testing.T) Model {
	t.Helper()
	store := storage.NewMemoryStore()
	sessions := storage.NewSessionStore(store)
	stats := storage.NewStatsStore(store)

	cfg := config.Default()
	cfg.UI.Markdown = false

	controller := chat.NewController(sessions, stats, func() chat.Settings {
		return chat.Settings{Provider: router.ProviderGemini, APIKey: "k", Model: "m"}
	}).WithRoute(func(ctx context.Context, p router.Provider, req provider.Request) (string, error) {
		return "ok", nil
	})
	return New(controller, stats, cfg)
}

func TestLoadAttachmentPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	pngHeader := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	if err := os.WriteFile(path, pngHeader, 0644); err != nil {
		t.Fatal(err)
	}

	att, err := LoadAttachment(path)
	if err != nil {
		t.Fatalf("LoadAttachment: %v", err)
	}
	if att.Kind != model.AttachmentKindImage {
		t.Errorf("Kind = %q, want %q", att.Kind, model.AttachmentKindImage)
	}
	if att.MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", att.MimeType)
	}
	if att.Data == "" {
		t.Error("Data is empty")
	}
	if att.Name != "pic.png" {
		t.Errorf("Name = %q, want pic.png", att.Name)
	}
}

func TestLoadAttachmentRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("plain text, nothing to see"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadAttachment(path)
	if !errors.Is(err, ErrNotAnImage) {
		t.Errorf("err = %v, want ErrNotAnImage", err)
	}
}

func TestLoadAttachmentMissingFile(t *testing.T) {
	_, err := LoadAttachment(filepath.Join(t.TempDir(), "absent.png"))
	if err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestStaleReplyIsDropped(t *testing.T) {
	m := testModel(t)
	m.sending = true
	m.seq = 5

	// A reply from an older request leaves the spinner running.
	updated, _ := m.Update(sendDoneMsg{seq: 3, text: "old"})
	if got := updated.(Model); !got.sending {
		t.Error("stale reply cleared the sending state")
	}

	// The current request's reply lands.
	updated, _ = m.Update(sendDoneMsg{seq: 5, text: "fresh"})
	if got := updated.(Model); got.sending {
		t.Error("current reply did not clear the sending state")
	}
}

func TestBeginEditStepsThroughUserTurns(t *testing.T) {
	m := testModel(t)
	ctx := context.Background()
	if _, err := m.controller.Send(ctx, "first question", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.controller.Send(ctx, "second question", nil); err != nil {
		t.Fatal(err)
	}

	// First press picks the most recent user turn.
	m.beginEdit()
	if got := m.input.Value(); got != "second question" {
		t.Errorf("first press loaded %q", got)
	}

	// Pressing again steps back to the earlier turn.
	m.beginEdit()
	if got := m.input.Value(); got != "first question" {
		t.Errorf("second press loaded %q", got)
	}

	// And wraps around to the latest one.
	m.beginEdit()
	if got := m.input.Value(); got != "second question" {
		t.Errorf("third press loaded %q", got)
	}
}

func TestSupersededReplyShowsNoError(t *testing.T) {
	m := testModel(t)
	m.sending = true
	m.seq = 2

	updated, _ := m.Update(sendDoneMsg{seq: 2, err: chat.ErrSuperseded})
	got := updated.(Model)
	if got.status != "" {
		t.Errorf("superseded reply set status %q", got.status)
	}
}
