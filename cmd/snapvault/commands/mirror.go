package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/storage"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Upload downloaded media to an S3 bucket",
	Long: `Mirrors everything under the output directory to S3, preserving the
images/videos layout. Objects that already exist are skipped, so reruns
only upload new media.`,
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}

func runMirror(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if cfg.S3Bucket == "" {
		return fmt.Errorf("s3-bucket must be set for mirroring")
	}

	client, err := storage.NewClient(ctx, cfg.S3Bucket, cfg.S3Region)
	if err != nil {
		return errors.Wrap(err, "S3 client failed")
	}

	stats, err := client.MirrorDirectory(ctx, cfg.OutputDir, cfg.S3Prefix)
	if err != nil {
		return errors.Wrap(err, "mirror failed")
	}

	fmt.Printf("Mirrored %d files (%d already present, %d failed)\n",
		stats.Uploaded, stats.Skipped, stats.Failed)

	if stats.Failed > 0 {
		return fmt.Errorf("%d uploads failed", stats.Failed)
	}
	return nil
}
