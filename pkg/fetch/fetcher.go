// Package fetch downloads a single asset with verification and
// exponential-backoff retry.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"snapvault/pkg/catalog"
	"snapvault/pkg/errors"
	"snapvault/pkg/overlay"
)

// Error is the terminal per-asset failure returned after retries are
// exhausted. The coordinator logs it and moves on; it never aborts the batch.
type Error struct {
	ID       string
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("download of %s failed after %d attempts: %v", e.ID, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPDoer is the subset of http.Client the fetcher needs.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Fetcher. Zero fields get defaults.
type Options struct {
	Client     HTTPDoer
	UserAgent  string
	MaxRetries int
	ImagesDir  string
	VideosDir  string
	Unpacker   *overlay.Unpacker

	// Sleep is the backoff wait, injectable so tests run on a fake clock.
	// It must return early with the context's error on cancellation.
	Sleep func(context.Context, time.Duration) error

	// NewBackOff builds the per-call retry delay policy.
	NewBackOff func() backoff.BackOff
}

// Fetcher downloads assets. Safe for concurrent use; backoff sleeps are local
// to the calling goroutine and never block other workers.
type Fetcher struct {
	opts Options
}

// New creates a Fetcher, filling in defaults for unset options.
func New(opts Options) *Fetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.Unpacker == nil {
		opts.Unpacker = overlay.New("-main.", 0)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = DefaultBackOff
	}
	return &Fetcher{opts: opts}
}

// DefaultBackOff doubles from one second with jitter disabled, so retry
// delays are exactly 1s, 2s, 4s, ...
func DefaultBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Fetch downloads one asset, verifies it, unpacks overlay archives, and moves
// the result to its final path. On terminal failure it returns *Error.
func (f *Fetcher) Fetch(ctx context.Context, asset catalog.Asset) (string, error) {
	bo := f.opts.NewBackOff()
	var lastErr error

	attempts := 0
	for attempt := 1; attempt <= f.opts.MaxRetries; attempt++ {
		attempts = attempt
		path, err := f.attempt(ctx, asset)
		if err == nil {
			if attempt > 1 {
				slog.Info("download_recovered", "asset_id", asset.ID, "attempt", attempt)
			}
			return path, nil
		}
		lastErr = err
		slog.Warn("download_attempt_failed", "asset_id", asset.ID, "attempt", attempt, "error", err)

		if attempt == f.opts.MaxRetries {
			break
		}
		if err := f.opts.Sleep(ctx, bo.NextBackOff()); err != nil {
			// Cancelled mid-backoff: report only the attempts that ran.
			lastErr = err
			break
		}
	}

	return "", &Error{ID: asset.ID, URL: asset.URL, Attempts: attempts, Err: lastErr}
}

// attempt performs one full download try: request, verify, unpack, finalize.
func (f *Fetcher) attempt(ctx context.Context, asset catalog.Asset) (string, error) {
	destDir := f.destDir(asset.Kind)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create output directory")
	}

	body, err := f.request(ctx, asset)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", errors.Wrap(err, "failed to write response body")
	}
	// A 200 with an empty body is a broken download, not a valid empty file.
	if n == 0 {
		cleanup()
		return "", fmt.Errorf("response body is empty")
	}

	if asset.HasOverlay || overlay.IsArchive(tmpPath) {
		if _, err := f.opts.Unpacker.ExtractBase(tmpPath); err != nil {
			cleanup()
			return "", errors.Wrap(err, "overlay extraction failed")
		}
	}

	finalPath := filepath.Join(destDir, asset.Filename())
	if err := os.Rename(tmpPath, finalPath); err != nil {
		cleanup()
		return "", errors.Wrap(err, "failed to finalize download")
	}
	return finalPath, nil
}

// request issues the network retrieval for the asset's route and returns the
// verified response body.
func (f *Fetcher) request(ctx context.Context, asset catalog.Asset) (io.ReadCloser, error) {
	if asset.DirectGet {
		return f.get(ctx, asset.URL, map[string]string{"X-Snap-Route-Tag": "mem-dmd"})
	}

	// Proxy route: POST the query string to the base URL; the body of the
	// response is the real download URL.
	base, params, _ := strings.Cut(asset.URL, "?")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, strings.NewReader(params))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	f.setCommonHeaders(req)

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	redirect, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read redirect url")
	}
	target := strings.TrimSpace(string(redirect))
	if target == "" {
		return nil, fmt.Errorf("proxy response contained no download url")
	}

	return f.get(ctx, target, nil)
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	f.setCommonHeaders(req)

	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (f *Fetcher) setCommonHeaders(req *http.Request) {
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "*/*")
}

func (f *Fetcher) destDir(kind catalog.MediaKind) string {
	if kind == catalog.KindVideo {
		return f.opts.VideosDir
	}
	return f.opts.ImagesDir
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
