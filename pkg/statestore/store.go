// Package statestore persists per-asset download status so interrupted runs
// can resume without re-downloading completed work.
package statestore

import (
	"time"
)

// Download status values. failed is terminal for a run but is retried by the
// next run; completed is terminal and skipped forever.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Record tracks one asset's download outcome.
type Record struct {
	Status      string     `json:"status"`
	OutputPath  string     `json:"output_path,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Snapshot maps asset ID to its record. The coordinator owns the live
// snapshot; stores only serialize and deserialize it.
type Snapshot map[string]Record

// Completed reports whether the snapshot marks the asset done.
func (s Snapshot) Completed(id string) bool {
	return s[id].Status == StatusCompleted
}

// Counts tallies records by status.
func (s Snapshot) Counts() (completed, failed, pending int) {
	for _, rec := range s {
		switch rec.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		default:
			pending++
		}
	}
	return
}

// Store persists snapshots. Load must fail softly: a missing or corrupt state
// file yields an empty snapshot, never an aborted run. Save must be atomic so
// a crash mid-write cannot destroy previously recorded completions.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Close() error
}
