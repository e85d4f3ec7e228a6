package statestore

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"snapvault/pkg/errors"
)

// JSONPath returns the canonical state file path under the output directory.
// The name is stable across versions; changing it breaks resume.
func JSONPath(outputDir string) string {
	return filepath.Join(outputDir, "download_state.json")
}

// JSONStore persists the snapshot as a single JSON document, replaced
// wholesale on every save.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store writing to path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the previous snapshot. A missing, unreadable, or corrupt state
// file only forfeits resume: it logs a warning and returns an empty snapshot.
func (s *JSONStore) Load() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("state_load_failed", "path", s.path, "error", err)
		}
		return Snapshot{}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("state_file_corrupt", "path", s.path, "error", err)
		return Snapshot{}, nil
	}

	slog.Info("state_loaded", "path", s.path, "records", len(snap))
	return snap, nil
}

// Save writes the snapshot atomically: encode to a temp file in the same
// directory, fsync, then rename over the previous file. A crash mid-write
// leaves the prior state intact.
func (s *JSONStore) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".download_state-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temp state file")
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name()) // no-op after successful rename
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return errors.Wrap(err, "failed to encode state")
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp state file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "failed to replace state file")
	}
	return nil
}

// Close is a no-op; the JSON store holds no resources between saves.
func (s *JSONStore) Close() error { return nil }
