package commands

import (
	"testing"

	"snapvault/internal/config"
	"snapvault/pkg/statestore"
)

func TestOpenStateStore_BackendSelection(t *testing.T) {
	dir := t.TempDir()

	cfg := &config.Config{OutputDir: dir, StateBackend: config.BackendJSON}
	store, err := openStateStore(cfg)
	if err != nil {
		t.Fatalf("failed to open json store: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*statestore.JSONStore); !ok {
		t.Errorf("expected *statestore.JSONStore, got %T", store)
	}

	cfg.StateBackend = config.BackendSQLite
	sqliteStore, err := openStateStore(cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	defer sqliteStore.Close()
	if _, ok := sqliteStore.(*statestore.SQLiteStore); !ok {
		t.Errorf("expected *statestore.SQLiteStore, got %T", sqliteStore)
	}
}
