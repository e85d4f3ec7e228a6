// Package pipeline fans the asset list out across a pool of download workers,
// collects results, and keeps the persisted download state current.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"snapvault/pkg/catalog"
	"snapvault/pkg/errors"
	"snapvault/pkg/statestore"
)

// Fetcher downloads one asset and returns its final path.
type Fetcher interface {
	Fetch(ctx context.Context, asset catalog.Asset) (string, error)
}

// Summary reports the outcome of a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

// Incomplete is the number of assets the run never got to (interruption).
func (s Summary) Incomplete() int {
	return s.Total - s.Succeeded - s.Failed - s.Skipped
}

// Observer receives progress events. Implementations must tolerate calls from
// a single collector goroutine only.
type Observer interface {
	Start(total int)
	Tick(asset catalog.Asset, rec statestore.Record)
	Finish()
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) Start(int) {}

func (NopObserver) Tick(catalog.Asset, statestore.Record) {}

func (NopObserver) Finish() {}

// Options configures a Coordinator.
type Options struct {
	Workers    int
	Delay      time.Duration // per-worker pacing after each request
	FlushEvery int           // results between state flushes
	ImagesDir  string
	VideosDir  string
	Observer   Observer
}

// Coordinator owns the in-memory snapshot for the duration of a run. Workers
// never touch it; they report over a channel to a single collector.
type Coordinator struct {
	store   statestore.Store
	flog    *statestore.FailureLog
	fetcher Fetcher
	opts    Options
	now     func() time.Time
}

// New creates a Coordinator.
func New(store statestore.Store, flog *statestore.FailureLog, fetcher Fetcher, opts Options) *Coordinator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FlushEvery < 1 {
		opts.FlushEvery = 10
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	return &Coordinator{store: store, flog: flog, fetcher: fetcher, opts: opts, now: time.Now}
}

type result struct {
	asset catalog.Asset
	path  string
	err   error
}

// Run processes the asset list. Per-asset failures never abort the batch; the
// returned error reflects only state persistence problems. Cancellation stops
// dispatch, lets in-flight fetches wind down, and flushes state before return.
func (c *Coordinator) Run(ctx context.Context, assets []catalog.Asset) (Summary, error) {
	snap, err := c.store.Load()
	if err != nil {
		// Stores fail softly; an error here is unexpected but still non-fatal.
		slog.Warn("state_load_failed", "error", err)
		snap = statestore.Snapshot{}
	}

	summary := Summary{Total: len(assets)}

	pending := make([]catalog.Asset, 0, len(assets))
	for _, a := range assets {
		if snap.Completed(a.ID) {
			summary.Skipped++
			continue
		}
		// A finished file already on disk (from a run that died before its
		// flush) counts as done; adopt it instead of re-downloading.
		if p := c.finalPath(a); fileNonEmpty(p) {
			snap[a.ID] = statestore.Record{Status: statestore.StatusCompleted, OutputPath: p}
			summary.Skipped++
			continue
		}
		pending = append(pending, a)
	}

	slog.Info("run_started",
		"total", summary.Total,
		"already_done", summary.Skipped,
		"workers", c.opts.Workers,
		"delay", c.opts.Delay,
	)

	c.opts.Observer.Start(len(pending))
	defer c.opts.Observer.Finish()

	jobs := make(chan catalog.Asset)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx, jobs, results)
		}()
	}

	// Feeder: stops dispatching as soon as the context is cancelled.
	go func() {
		defer close(jobs)
		for _, a := range pending {
			select {
			case <-ctx.Done():
				return
			case jobs <- a:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collector: sole writer of the snapshot and the failure log.
	sinceFlush := 0
	var persistErr error
	for res := range results {
		rec := statestore.Record{LastAttempt: ptrTime(c.now())}
		if res.err != nil {
			rec.Status = statestore.StatusFailed
			rec.Error = res.err.Error()
			summary.Failed++
			if err := c.flog.Append(res.asset.ID, res.asset.URL, res.err); err != nil {
				slog.Error("failure_log_append_failed", "asset_id", res.asset.ID, "error", err)
			}
		} else {
			rec.Status = statestore.StatusCompleted
			rec.OutputPath = res.path
			summary.Succeeded++
		}
		snap[res.asset.ID] = rec
		c.opts.Observer.Tick(res.asset, rec)

		sinceFlush++
		if sinceFlush >= c.opts.FlushEvery {
			sinceFlush = 0
			if err := c.store.Save(snap); err != nil {
				// Losing flushes silently would defeat resume; shout.
				slog.Error("state_flush_failed", "error", err)
				persistErr = err
			}
		}
	}

	if err := c.store.Save(snap); err != nil {
		slog.Error("state_flush_failed", "error", err)
		persistErr = err
	}

	slog.Info("run_finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"incomplete", summary.Incomplete(),
	)

	return summary, errors.Wrap(persistErr, "state persistence failed")
}

// worker pulls assets until the queue closes or the context is cancelled.
// The pacing delay is local to this worker, so total request rate scales with
// the worker count.
func (c *Coordinator) worker(ctx context.Context, jobs <-chan catalog.Asset, results chan<- result) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-jobs:
			if !ok {
				return
			}
			path, err := c.fetcher.Fetch(ctx, a)
			select {
			case results <- result{asset: a, path: path, err: err}:
			case <-ctx.Done():
				return
			}
			if c.opts.Delay > 0 {
				t := time.NewTimer(c.opts.Delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return
				case <-t.C:
				}
			}
		}
	}
}

func (c *Coordinator) finalPath(a catalog.Asset) string {
	dir := c.opts.ImagesDir
	if a.Kind == catalog.KindVideo {
		dir = c.opts.VideosDir
	}
	return filepath.Join(dir, a.Filename())
}

func fileNonEmpty(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

func ptrTime(t time.Time) *time.Time { return &t }
