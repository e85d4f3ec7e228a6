// Package metadata rewrites capture-date metadata on downloaded media, using
// the date encoded in each file's name. Both image EXIF and video track dates
// go through exiftool, which must be on PATH.
package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"snapvault/pkg/errors"
)

// filenameDateRe matches the {YYYY-MM-DD_HH-MM-SS}_ prefix of normalized
// media filenames.
var filenameDateRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})_`)

// ParseFilenameDate extracts the capture timestamp from a normalized media
// filename.
func ParseFilenameDate(name string) (time.Time, bool) {
	m := filenameDateRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("2006-01-02_15-04-05", m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Runner executes exiftool with the given arguments and returns its stdout.
// Injectable so tests run without the binary.
type Runner func(ctx context.Context, args ...string) (string, error)

func exiftoolRunner(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "exiftool", args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return "", fmt.Errorf("exiftool: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return "", errors.Wrap(err, "exiftool")
	}
	return string(out), nil
}

// Stats summarizes a tagging pass.
type Stats struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
}

// Tagger rewrites capture dates on media files.
type Tagger struct {
	// Force rewrites dates even when a file already carries one.
	Force bool

	run Runner
}

// NewTagger returns a Tagger backed by the exiftool binary.
func NewTagger(force bool) (*Tagger, error) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		return nil, fmt.Errorf("exiftool not found on PATH (required for metadata tagging)")
	}
	return &Tagger{Force: force, run: exiftoolRunner}, nil
}

// NewTaggerWithRunner returns a Tagger using a custom runner (tests).
func NewTaggerWithRunner(force bool, run Runner) *Tagger {
	return &Tagger{Force: force, run: run}
}

// TagDirectory processes all media under dir's images/ and videos/
// subdirectories, falling back to dir itself when neither exists. Files whose
// names carry no date, or that are already tagged (unless Force), are skipped.
func (t *Tagger) TagDirectory(ctx context.Context, dir string) (Stats, error) {
	files, err := findMedia(dir)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(files)}
	for _, path := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		switch err := t.tagFile(ctx, path); {
		case err == nil:
			stats.Processed++
		case err == errSkipped:
			stats.Skipped++
		default:
			stats.Failed++
			slog.Warn("metadata_tag_failed", "path", path, "error", err)
		}
	}

	slog.Info("metadata_pass_complete",
		"total", stats.Total,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

var errSkipped = fmt.Errorf("skipped")

func (t *Tagger) tagFile(ctx context.Context, path string) error {
	captured, ok := ParseFilenameDate(path)
	if !ok {
		return errSkipped
	}

	if !t.Force {
		tagged, err := t.hasCaptureDate(ctx, path)
		if err == nil && tagged {
			return errSkipped
		}
	}

	stamp := captured.Format("2006:01:02 15:04:05")
	args := []string{"-overwrite_original",
		"-DateTimeOriginal=" + stamp,
		"-CreateDate=" + stamp,
		"-ModifyDate=" + stamp,
	}
	if isVideo(path) {
		args = append(args,
			"-MediaCreateDate="+stamp,
			"-MediaModifyDate="+stamp,
			"-TrackCreateDate="+stamp,
			"-TrackModifyDate="+stamp,
		)
	}
	args = append(args, path)

	_, err := t.run(ctx, args...)
	return err
}

// hasCaptureDate queries exiftool for an existing DateTimeOriginal.
func (t *Tagger) hasCaptureDate(ctx context.Context, path string) (bool, error) {
	out, err := t.run(ctx, "-s3", "-DateTimeOriginal", path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func isVideo(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov":
		return true
	}
	return false
}

// findMedia lists media files under dir/images and dir/videos, or dir itself
// when no subdirectories exist, in stable order.
func findMedia(dir string) ([]string, error) {
	var files []string
	for _, sub := range []string{filepath.Join(dir, "images"), filepath.Join(dir, "videos")} {
		files = append(files, globMedia(sub)...)
	}
	if len(files) == 0 {
		files = globMedia(dir)
	}
	sort.Strings(files)
	return files, nil
}

func globMedia(dir string) []string {
	var out []string
	for _, pattern := range []string{"*.jpg", "*.jpeg", "*.mp4", "*.mov"} {
		matches, _ := filepath.Glob(filepath.Join(dir, pattern))
		out = append(out, matches...)
	}
	return out
}
