package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"snapvault/pkg/errors"
)

// FailureLogPath returns the append-only failure log path under the output
// directory.
func FailureLogPath(outputDir string) string {
	return filepath.Join(outputDir, "failed_downloads.log")
}

// FailureLog records unrecoverable per-asset failures, one line each, so the
// operator can inspect them and rerun. Entries are never rewritten.
type FailureLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFailureLog creates a failure log writing to path.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path, now: time.Now}
}

// Append records one terminal failure.
func (l *FailureLog) Append(id, url string, cause error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open failure log")
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] id=%s url=%s error=%v\n", l.now().UTC().Format(time.RFC3339), id, url, cause)
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "failed to append failure")
	}
	return nil
}
