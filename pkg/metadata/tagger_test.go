package metadata

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseFilenameDate(t *testing.T) {
	tests := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{"2025-11-10_14-44-41_abc123.jpg", time.Date(2025, 11, 10, 14, 44, 41, 0, time.UTC), true},
		{"/some/dir/2025-01-02_03-04-05_ffff.mp4", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"no-date-here.jpg", time.Time{}, false},
		{"2025-13-40_99-99-99_bad.jpg", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseFilenameDate(tt.name)
		if ok != tt.ok {
			t.Errorf("%q: ok=%v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("%q: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

type recordedCall struct {
	args []string
}

func recordingRunner(calls *[]recordedCall, queryResult string) Runner {
	var mu sync.Mutex
	return func(_ context.Context, args ...string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, recordedCall{args: args})
		if len(args) > 0 && args[0] == "-s3" {
			return queryResult, nil
		}
		return "", nil
	}
}

func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTagDirectory(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, filepath.Join(dir, "images"), "2025-11-10_14-44-41_abc123.jpg")
	writeMedia(t, filepath.Join(dir, "images"), "undated.jpg")
	writeMedia(t, filepath.Join(dir, "videos"), "2025-12-01_08-15-02_ffff.mp4")

	var calls []recordedCall
	tagger := NewTaggerWithRunner(true, recordingRunner(&calls, ""))

	stats, err := tagger.TagDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	if stats.Total != 3 || stats.Processed != 2 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("stats mismatch: %+v", stats)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 exiftool invocations, got %d", len(calls))
	}

	imageArgs := strings.Join(calls[0].args, " ")
	if !strings.Contains(imageArgs, "-DateTimeOriginal=2025:11:10 14:44:41") {
		t.Errorf("image date not written: %q", imageArgs)
	}
	if strings.Contains(imageArgs, "-MediaCreateDate=") {
		t.Errorf("image got video-only fields: %q", imageArgs)
	}

	videoArgs := strings.Join(calls[1].args, " ")
	if !strings.Contains(videoArgs, "-MediaCreateDate=2025:12:01 08:15:02") {
		t.Errorf("video track date not written: %q", videoArgs)
	}
}

func TestTagDirectory_SkipsAlreadyTagged(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, filepath.Join(dir, "images"), "2025-11-10_14-44-41_abc123.jpg")

	var calls []recordedCall
	tagger := NewTaggerWithRunner(false, recordingRunner(&calls, "2020:01:01 00:00:00"))

	stats, err := tagger.TagDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Errorf("already-tagged file not skipped: %+v", stats)
	}
	for _, c := range calls {
		if len(c.args) > 0 && c.args[0] != "-s3" {
			t.Errorf("write invocation issued for tagged file: %v", c.args)
		}
	}
}

func TestTagDirectory_ForceRewrites(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, filepath.Join(dir, "images"), "2025-11-10_14-44-41_abc123.jpg")

	var calls []recordedCall
	tagger := NewTaggerWithRunner(true, recordingRunner(&calls, "2020:01:01 00:00:00"))

	stats, err := tagger.TagDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	if stats.Processed != 1 {
		t.Errorf("force did not rewrite: %+v", stats)
	}
}
