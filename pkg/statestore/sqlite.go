package statestore

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"snapvault/pkg/errors"
)

// SQLitePath returns the sqlite state database path under the output directory.
func SQLitePath(outputDir string) string {
	return filepath.Join(outputDir, "download_state.db")
}

// schema holds one row per asset, mirroring the JSON record shape.
const schema = `
CREATE TABLE IF NOT EXISTS downloads (
    asset_id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('pending', 'completed', 'failed')),
    output_path TEXT,
    last_attempt TIMESTAMP,
    error_message TEXT,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
`

// SQLiteStore implements Store on an embedded sqlite database. It keeps the
// same whole-snapshot contract as the JSON store: Save replaces all rows in
// one transaction, so readers never observe a partial flush.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the state database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create schema")
	}
	slog.Info("state_db_ready", "db_path", dbPath)
	return &SQLiteStore{db: db}, nil
}

// Load reads all rows. Query failures fail softly to an empty snapshot, same
// as a corrupt JSON file: resume is forfeited, the run continues.
func (s *SQLiteStore) Load() (Snapshot, error) {
	rows, err := s.db.Query(`SELECT asset_id, status, output_path, last_attempt, error_message FROM downloads`)
	if err != nil {
		slog.Warn("state_db_load_failed", "error", err)
		return Snapshot{}, nil
	}
	defer rows.Close()

	snap := Snapshot{}
	for rows.Next() {
		var (
			id          string
			rec         Record
			outputPath  sql.NullString
			lastAttempt sql.NullString
			errMsg      sql.NullString
		)
		if err := rows.Scan(&id, &rec.Status, &outputPath, &lastAttempt, &errMsg); err != nil {
			slog.Warn("state_db_row_skipped", "error", err)
			continue
		}
		rec.OutputPath = outputPath.String
		rec.Error = errMsg.String
		if lastAttempt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, lastAttempt.String); err == nil {
				rec.LastAttempt = &t
			}
		}
		snap[id] = rec
	}
	if err := rows.Err(); err != nil {
		slog.Warn("state_db_load_failed", "error", err)
		return Snapshot{}, nil
	}

	slog.Info("state_loaded", "backend", "sqlite", "records", len(snap))
	return snap, nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *SQLiteStore) Save(snap Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM downloads`); err != nil {
		return errors.Wrap(err, "failed to clear downloads")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO downloads (asset_id, status, output_path, last_attempt, error_message)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for id, rec := range snap {
		var lastAttempt any
		if rec.LastAttempt != nil {
			lastAttempt = rec.LastAttempt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.Exec(id, rec.Status, rec.OutputPath, lastAttempt, rec.Error); err != nil {
			return errors.Wrapf(err, "failed to insert record %s", id)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit snapshot")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
