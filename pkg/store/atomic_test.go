package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWriteFileAtomic_ReplacesWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	if err := writeFileAtomic(path, []byte("first version")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := writeFileAtomic(path, []byte("v2")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("expected full replacement, got %q", data)
	}
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")

	for i := 0; i < 5; i++ {
		if err := writeFileAtomic(path, []byte("data")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "snap.json" {
		t.Fatalf("expected only the canonical file, got %v", entries)
	}
}

// A crash between temp write and rename must leave the canonical file
// at the pre-write state. Simulated by writing the temp sibling by
// hand and never renaming.
func TestCrashBeforeRenameLeavesOldSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user_memory.json")

	s := New(Options{Path: path, Log: zerolog.Nop()})
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.AppendTurn("u1", ConversationTurn{UserMessage: "committed"}, 50); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Orphaned temp file from an interrupted write.
	if err := os.WriteFile(path+".tmp-crash", []byte(`{"users": {partial`), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	s2 := New(Options{Path: path, Log: zerolog.Nop()})
	if err := s2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	hist := s2.GetUser("u1").ConversationHistory
	if len(hist) != 1 || hist[0].UserMessage != "committed" {
		t.Fatalf("expected pre-crash state, got %#v", hist)
	}
}

// After the rename the canonical file must be fully the new version.
func TestCrashAfterRenameObservesNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user_memory.json")

	s := New(Options{Path: path, Log: zerolog.Nop()})
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.AddNotification("u1", Notification{ID: "n1", Task: "t", DueAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	// "Crash" here means: a brand new process starts from disk alone.
	s2 := New(Options{Path: path, Log: zerolog.Nop()})
	if err := s2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := s2.NotificationsFor("u1", StatusPending); len(got) != 1 {
		t.Fatalf("expected persisted notification, got %#v", got)
	}
}
