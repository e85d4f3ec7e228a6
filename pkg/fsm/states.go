package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/superfly/fsm"

	"snapvault/pkg/catalog"
	"snapvault/pkg/errors"
)

// handleParseCatalog loads the asset list from the export index
func (m *Machine) handleParseCatalog(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_parse_catalog", "index", req.Msg.IndexPath)

	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "index", req.Msg.IndexPath, "max_retries", m.maxRetries)
		return nil, fsm.Abort(fmt.Errorf("max retries (%d) exceeded", m.maxRetries))
	}

	assets, err := catalog.ParseFile(req.Msg.IndexPath)
	if err != nil {
		// A bad or empty index is fatal for the whole run.
		slog.Error("catalog_parse_failed", "index", req.Msg.IndexPath, "error", err)
		return nil, fsm.Abort(errors.Wrap(err, "catalog load failed"))
	}
	m.assets = assets

	resp := req.W.Msg
	if resp == nil {
		resp = &RunResponse{}
	}
	resp.Found = len(assets)

	slog.Info("catalog_loaded", "index", req.Msg.IndexPath, "entries", len(assets))
	return fsm.NewResponse(resp), nil
}

// handleDownload runs the worker pool over the parsed assets
func (m *Machine) handleDownload(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	slog.Info("fsm_state_download", "assets", len(m.assets))

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	summary, err := m.coordinator.Run(ctx, m.assets)
	if err != nil {
		// Only state persistence fails a run here; per-asset errors are
		// already recorded in the snapshot and failure log.
		slog.Error("download_run_failed", "error", err)
		return nil, fsm.Abort(err)
	}

	resp.Succeeded = summary.Succeeded
	resp.Failed = summary.Failed
	resp.Skipped = summary.Skipped
	resp.Incomplete = summary.Incomplete()

	return fsm.NewResponse(resp), nil
}

// handleFinalize classifies the run outcome
func (m *Machine) handleFinalize(ctx context.Context, req *fsm.Request[RunRequest, RunResponse]) (*fsm.Response[RunResponse], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	switch {
	case resp.Incomplete > 0:
		resp.Status = StatusIncomplete
	case resp.Failed > 0:
		resp.Status = StatusHadErrors
	default:
		resp.Status = StatusComplete
	}

	slog.Info("fsm_complete",
		"status", resp.Status,
		"found", resp.Found,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"skipped", resp.Skipped,
	)

	return fsm.NewResponse(resp), nil
}
