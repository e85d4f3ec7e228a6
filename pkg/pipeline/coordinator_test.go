package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"snapvault/pkg/catalog"
	"snapvault/pkg/statestore"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, a catalog.Asset) (string, error) {
	f.mu.Lock()
	f.calls[a.ID]++
	f.mu.Unlock()
	if f.fail[a.ID] {
		return "", fmt.Errorf("simulated download failure")
	}
	return "/out/" + a.Filename(), nil
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func makeAssets(n int) []catalog.Asset {
	assets := make([]catalog.Asset, n)
	base := time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC)
	for i := range assets {
		assets[i] = catalog.Asset{
			ID:         fmt.Sprintf("asset%011d", i),
			CapturedAt: base.Add(time.Duration(i) * time.Minute),
			Kind:       catalog.KindImage,
			URL:        fmt.Sprintf("https://x.test/%d", i),
		}
	}
	return assets
}

func newTestCoordinator(t *testing.T, fetcher Fetcher, workers int) (*Coordinator, statestore.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := statestore.NewJSONStore(statestore.JSONPath(dir))
	flog := statestore.NewFailureLog(statestore.FailureLogPath(dir))
	c := New(store, flog, fetcher, Options{
		Workers:    workers,
		FlushEvery: 3,
		ImagesDir:  filepath.Join(dir, "images"),
		VideosDir:  filepath.Join(dir, "videos"),
	})
	return c, store, dir
}

func TestRun_AllSucceed(t *testing.T) {
	fetcher := newFakeFetcher()
	c, store, _ := newTestCoordinator(t, fetcher, 5)
	assets := makeAssets(20)

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Succeeded != 20 || summary.Failed != 0 || summary.Skipped != 0 {
		t.Errorf("summary mismatch: %+v", summary)
	}
	if fetcher.totalCalls() != 20 {
		t.Errorf("expected 20 fetches, got %d", fetcher.totalCalls())
	}
	for id, n := range fetcher.calls {
		if n != 1 {
			t.Errorf("asset %s fetched %d times", id, n)
		}
	}

	snap, _ := store.Load()
	if len(snap) != 20 {
		t.Fatalf("expected 20 persisted records, got %d", len(snap))
	}
	for _, a := range assets {
		if !snap.Completed(a.ID) {
			t.Errorf("asset %s not marked completed", a.ID)
		}
	}
}

func TestRun_ResumeSkipsCompleted(t *testing.T) {
	fetcher := newFakeFetcher()
	c, store, _ := newTestCoordinator(t, fetcher, 2)
	assets := makeAssets(10)

	prior := statestore.Snapshot{}
	for _, a := range assets[:5] {
		prior[a.ID] = statestore.Record{Status: statestore.StatusCompleted, OutputPath: "/out/" + a.Filename()}
	}
	if err := store.Save(prior); err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Skipped != 5 || summary.Succeeded != 5 {
		t.Errorf("summary mismatch: %+v", summary)
	}
	if fetcher.totalCalls() != 5 {
		t.Errorf("expected 5 fetches, got %d", fetcher.totalCalls())
	}
	for _, a := range assets[:5] {
		if fetcher.calls[a.ID] != 0 {
			t.Errorf("completed asset %s re-fetched", a.ID)
		}
	}
}

func TestRun_SecondRunFetchesNothing(t *testing.T) {
	fetcher := newFakeFetcher()
	c, _, _ := newTestCoordinator(t, fetcher, 3)
	assets := makeAssets(8)

	if _, err := c.Run(context.Background(), assets); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := fetcher.totalCalls()

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if fetcher.totalCalls() != first {
		t.Errorf("second run re-fetched %d assets", fetcher.totalCalls()-first)
	}
	if summary.Skipped != 8 {
		t.Errorf("expected all 8 skipped, got %+v", summary)
	}
}

func TestRun_FailuresIsolated(t *testing.T) {
	fetcher := newFakeFetcher()
	c, store, dir := newTestCoordinator(t, fetcher, 4)
	assets := makeAssets(10)
	fetcher.fail[assets[2].ID] = true
	fetcher.fail[assets[7].ID] = true

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if summary.Succeeded != 8 || summary.Failed != 2 {
		t.Errorf("summary mismatch: %+v", summary)
	}

	snap, _ := store.Load()
	for _, id := range []string{assets[2].ID, assets[7].ID} {
		rec := snap[id]
		if rec.Status != statestore.StatusFailed {
			t.Errorf("asset %s not marked failed: %+v", id, rec)
		}
		if rec.Error == "" {
			t.Errorf("asset %s failure has no error message", id)
		}
	}

	data, err := os.ReadFile(statestore.FailureLogPath(dir))
	if err != nil {
		t.Fatalf("failure log missing: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 failure log lines, got %d", len(lines))
	}
}

func TestRun_FailedRetriedOnNextRun(t *testing.T) {
	fetcher := newFakeFetcher()
	c, store, _ := newTestCoordinator(t, fetcher, 1)
	assets := makeAssets(3)

	prior := statestore.Snapshot{
		assets[0].ID: {Status: statestore.StatusFailed, Error: "boom"},
	}
	if err := store.Save(prior); err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if fetcher.calls[assets[0].ID] != 1 {
		t.Error("previously failed asset was not retried")
	}
	if summary.Succeeded != 3 {
		t.Errorf("summary mismatch: %+v", summary)
	}
	snap, _ := store.Load()
	if !snap.Completed(assets[0].ID) {
		t.Error("retried asset not marked completed")
	}
}

func TestRun_AdoptsFileAlreadyOnDisk(t *testing.T) {
	fetcher := newFakeFetcher()
	c, store, dir := newTestCoordinator(t, fetcher, 1)
	assets := makeAssets(2)

	// Simulate a run that died after finalizing the file but before flushing.
	imagesDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		t.Fatal(err)
	}
	onDisk := filepath.Join(imagesDir, assets[0].Filename())
	if err := os.WriteFile(onDisk, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	summary, err := c.Run(context.Background(), assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if fetcher.calls[assets[0].ID] != 0 {
		t.Error("on-disk asset was re-fetched")
	}
	if summary.Skipped != 1 || summary.Succeeded != 1 {
		t.Errorf("summary mismatch: %+v", summary)
	}
	snap, _ := store.Load()
	if !snap.Completed(assets[0].ID) {
		t.Error("adopted file not recorded as completed")
	}
}

// cancellingFetcher cancels the run after its first fetch.
type cancellingFetcher struct {
	fakeFetcher
	cancel context.CancelFunc
	once   sync.Once
}

func (f *cancellingFetcher) Fetch(ctx context.Context, a catalog.Asset) (string, error) {
	path, err := f.fakeFetcher.Fetch(ctx, a)
	f.once.Do(f.cancel)
	return path, err
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &cancellingFetcher{cancel: cancel}
	fetcher.calls = map[string]int{}
	fetcher.fail = map[string]bool{}
	c, store, _ := newTestCoordinator(t, fetcher, 2)
	assets := makeAssets(40)

	summary, err := c.Run(ctx, assets)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if n := fetcher.totalCalls(); n >= 40 {
		t.Errorf("cancelled run fetched all %d assets", n)
	}
	if summary.Incomplete() == 0 {
		t.Errorf("expected incomplete assets after cancellation, got %+v", summary)
	}

	// State reached before cancellation must survive for the next run.
	if _, err := store.Load(); err != nil {
		t.Fatalf("state unreadable after cancelled run: %v", err)
	}
}
