package statestore

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "download_state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %d records", len(snap))
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "download_state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	attempt := time.Date(2025, 11, 10, 14, 44, 41, 0, time.UTC)
	snap := Snapshot{
		"aaaa": {Status: StatusCompleted, OutputPath: "/out/a.jpg", LastAttempt: &attempt},
		"bbbb": {Status: StatusFailed, Error: "request failed", LastAttempt: &attempt},
		"cccc": {Status: StatusPending},
	}

	if err := store.Save(snap); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 records, got %d", len(loaded))
	}
	if rec := loaded["aaaa"]; rec.Status != StatusCompleted || rec.OutputPath != "/out/a.jpg" {
		t.Errorf("completed record mismatch: %+v", rec)
	}
	if !loaded["aaaa"].LastAttempt.Equal(attempt) {
		t.Errorf("last attempt mismatch: %v", loaded["aaaa"].LastAttempt)
	}
	if rec := loaded["cccc"]; rec.LastAttempt != nil {
		t.Errorf("expected nil last attempt, got %v", rec.LastAttempt)
	}
}

func TestSQLiteStore_SaveReplacesPrevious(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "download_state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if err := store.Save(Snapshot{"old": {Status: StatusFailed}}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(Snapshot{"new": {Status: StatusCompleted}}); err != nil {
		t.Fatal(err)
	}

	loaded, _ := store.Load()
	if len(loaded) != 1 {
		t.Fatalf("expected 1 record after replace, got %d", len(loaded))
	}
	if !loaded.Completed("new") {
		t.Error("new record missing after save")
	}
}
