package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/metadata"
)

var tagForce bool

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Write capture dates into media metadata via exiftool",
	Long: `Parses the capture timestamp from each downloaded file's name and writes
it into the EXIF / track date fields, so photo libraries sort the export
correctly. Requires exiftool on PATH.`,
	RunE: runTag,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().BoolVar(&tagForce, "force", false, "Rewrite dates on files that already have one")
}

func runTag(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	tagger, err := metadata.NewTagger(tagForce)
	if err != nil {
		return err
	}

	stats, err := tagger.TagDirectory(ctx, cfg.OutputDir)
	if err != nil {
		return errors.Wrap(err, "tagging failed")
	}

	fmt.Printf("Tagged %d of %d files (%d skipped, %d failed)\n",
		stats.Processed, stats.Total, stats.Skipped, stats.Failed)

	if stats.Failed > 0 {
		return fmt.Errorf("%d files could not be tagged", stats.Failed)
	}
	return nil
}
