// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"queryquant/internal/model"
)

// backends returns one of each Store implementation for shared tests.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFileStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStoreWithDir: %v", err)
	}
	sq, err := NewSQLiteStoreWithPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStoreWithPath: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": sq,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get("missing"); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("expected ErrKeyNotFound, got %v", err)
			}

			if err := store.Set("k", []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := store.Get("k")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "v1" {
				t.Errorf("Get = %q, want %q", got, "v1")
			}

			// Overwrite.
			if err := store.Set("k", []byte("v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, _ = store.Get("k")
			if string(got) != "v2" {
				t.Errorf("Get after overwrite = %q, want %q", got, "v2")
			}

			// Delete, then delete again (idempotent).
			if err := store.Delete("k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := store.Delete("k"); err != nil {
				t.Errorf("Delete absent key: %v", err)
			}
			if _, err := store.Get("k"); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("expected ErrKeyNotFound after delete, got %v", err)
			}
		})
	}
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStoreWithDir(dir)
	if err != nil {
		t.Fatalf("NewFileStoreWithDir: %v", err)
	}

	if err := fs.Set("../../evil", []byte("x")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := fs.Get("../../evil")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("Get = %q", got)
	}

	// The file must live inside the base directory.
	path := fs.filePath("../../evil")
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || filepath.IsAbs(rel) || len(rel) >= 2 && rel[:2] == ".." {
		t.Errorf("sanitized path escapes base dir: %q", path)
	}
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	sq, err := NewSQLiteStoreWithPath(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sq.Set("k", []byte("durable")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	sq.Close()

	sq2, err := NewSQLiteStoreWithPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer sq2.Close()

	got, err := sq2.Get("k")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "durable" {
		t.Errorf("Get = %q, want %q", got, "durable")
	}
}

// =============================================================================
// SESSION STORE
// =============================================================================

func TestSessionStoreEmpty(t *testing.T) {
	ss := NewSessionStore(NewMemoryStore())
	if got := ss.List(); len(got) != 0 {
		t.Errorf("expected empty list, got %d", len(got))
	}
}

func TestSessionStoreCorruptedYieldsEmpty(t *testing.T) {
	store := NewMemoryStore()
	store.Set(KeySessions, []byte("{not json"))

	ss := NewSessionStore(store)
	if got := ss.List(); len(got) != 0 {
		t.Errorf("corrupted value should yield empty list, got %d", len(got))
	}
}

func TestSessionStoreCRUD(t *testing.T) {
	ss := NewSessionStore(NewMemoryStore())

	first := model.NewSession("first")
	second := model.NewSession("second")

	if err := ss.Create(first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := ss.Create(second); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Newest first.
	list := ss.List()
	if len(list) != 2 {
		t.Fatalf("List len = %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("expected newest session first")
	}

	// Update round-trips message content.
	second.Append(model.NewMessage(model.RoleUser, "hello", nil))
	if err := ss.Update(second); err != nil {
		t.Fatalf("Update: %v", err)
	}
	loaded, err := ss.Load(second.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Text != "hello" {
		t.Errorf("Update did not persist messages: %+v", loaded.Messages)
	}

	// Update of an unknown session fails.
	ghost := model.NewSession("ghost")
	if err := ss.Update(ghost); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	// Delete.
	if err := ss.Delete(first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := ss.Load(first.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := ss.Delete(first.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double delete, got %v", err)
	}
}

func TestSessionStoreAttachmentRoundTrip(t *testing.T) {
	ss := NewSessionStore(NewMemoryStore())

	sess := model.NewSession("")
	sess.Append(model.NewMessage(model.RoleUser, "", []model.Attachment{
		{MimeType: "image/png", Data: "aVZCT1J3MEtH"},
	}))
	if err := ss.Create(sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := ss.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	att := loaded.Messages[0].Attachments
	if len(att) != 1 || att[0].MimeType != "image/png" || att[0].Data != "aVZCT1J3MEtH" {
		t.Errorf("attachment did not round-trip: %+v", att)
	}
}

// =============================================================================
// STATS STORE
// =============================================================================

func TestStatsStoreIncrement(t *testing.T) {
	st := NewStatsStore(NewMemoryStore())

	if st.Today().Total() != 0 {
		t.Errorf("fresh store Today = %d, want 0", st.Today().Total())
	}

	for i := 0; i < 2; i++ {
		if err := st.Increment(model.KindInternal); err != nil {
			t.Fatalf("Increment: %v", err)
		}
	}
	if err := st.Increment(model.KindExternal); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	today := st.Today()
	if today.InternalCount != 2 || today.ExternalCount != 1 {
		t.Errorf("Today = %d/%d, want 2/1", today.InternalCount, today.ExternalCount)
	}

	// A different day holds its own counters.
	yesterday := time.Now().AddDate(0, 0, -1)
	if err := st.IncrementDay(model.KindInternal, yesterday); err != nil {
		t.Fatalf("IncrementDay: %v", err)
	}
	all := st.All()
	if all[model.DayKey(yesterday)].Total() != 1 {
		t.Errorf("yesterday = %d, want 1", all[model.DayKey(yesterday)].Total())
	}
	if st.Today().Total() != 3 {
		t.Errorf("Today after yesterday increment = %d, want 3", st.Today().Total())
	}
}

func TestStatsStoreConcurrentIncrements(t *testing.T) {
	st := NewStatsStore(NewMemoryStore())

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			st.Increment(model.KindInternal)
		}()
	}
	wg.Wait()

	if got := st.Today().InternalCount; got != n {
		t.Errorf("Today = %d, want %d", got, n)
	}
}

func TestStatsStoreReplace(t *testing.T) {
	st := NewStatsStore(NewMemoryStore())
	st.Increment(model.KindInternal)

	replacement := model.StatMap{
		"2024-06-01": {Date: "2024-06-01", InternalCount: 5, ExternalCount: 2},
	}
	if err := st.Replace(replacement); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	all := st.All()
	if len(all) != 1 || all["2024-06-01"].Total() != 7 {
		t.Errorf("Replace did not swap collection: %+v", all)
	}
}
