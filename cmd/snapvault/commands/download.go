package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/fetch"
	appfsm "snapvault/pkg/fsm"
	"snapvault/pkg/overlay"
	"snapvault/pkg/pipeline"
	"snapvault/pkg/statestore"
)

var downloadCmd = &cobra.Command{
	Use:   "download <memories_history.html>",
	Short: "Download all memories listed in the export index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	// SIGINT/SIGTERM cancels dispatch; in-flight downloads wind down and
	// state is flushed before exit.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg); err != nil {
		return err
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return errors.Wrap(err, "state store init failed")
	}
	defer store.Close()

	flog := statestore.NewFailureLog(statestore.FailureLogPath(cfg.OutputDir))

	fetcher := fetch.New(fetch.Options{
		Client:     &http.Client{Timeout: cfg.HTTPTimeout()},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
		ImagesDir:  cfg.ImagesDir(),
		VideosDir:  cfg.VideosDir(),
		Unpacker:   overlay.New(cfg.OverlayMarker, cfg.MaxMediaSize),
	})

	coordinator := pipeline.New(store, flog, fetcher, pipeline.Options{
		Workers:    cfg.Workers,
		Delay:      cfg.Delay(),
		FlushEvery: cfg.FlushEvery,
		ImagesDir:  cfg.ImagesDir(),
		VideosDir:  cfg.VideosDir(),
		Observer:   pipeline.NewBarObserver(),
	})

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := appfsm.NewMachine(coordinator, cfg.MaxRetries)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	req := &appfsm.RunRequest{
		IndexPath: indexPath,
		OutputDir: cfg.OutputDir,
	}
	resp := &appfsm.RunResponse{}

	version, err := start(ctx, indexPath, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "FSM execution failed")
	}

	fmt.Println(renderTable(
		[]string{"OUTCOME", "COUNT"},
		[][]string{
			{"found", strconv.Itoa(resp.Found)},
			{"succeeded", strconv.Itoa(resp.Succeeded)},
			{"skipped", strconv.Itoa(resp.Skipped)},
			{"failed", strconv.Itoa(resp.Failed)},
			{"incomplete", strconv.Itoa(resp.Incomplete)},
		},
	))

	if resp.Failed > 0 {
		return fmt.Errorf("%d downloads failed; see %s", resp.Failed, statestore.FailureLogPath(cfg.OutputDir))
	}
	if resp.Incomplete > 0 {
		return fmt.Errorf("run interrupted with %d downloads remaining; rerun to resume", resp.Incomplete)
	}
	return nil
}
