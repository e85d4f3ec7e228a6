package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/statestore"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check completed downloads against files on disk",
	Long: `Re-checks every completed record: a missing or empty file demotes the
record to pending so the next download run fetches it again.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	store, err := openStateStore(cfg)
	if err != nil {
		return errors.Wrap(err, "state store init failed")
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		return errors.Wrap(err, "state load failed")
	}

	if len(snap) == 0 {
		fmt.Println("No download state found")
		return nil
	}

	demoted := 0
	for id, rec := range snap {
		if rec.Status != statestore.StatusCompleted {
			continue
		}
		if fileNonEmpty(rec.OutputPath) {
			continue
		}
		rec.Status = statestore.StatusPending
		rec.Error = ""
		snap[id] = rec
		demoted++
		fmt.Printf("missing or empty: %s (%s)\n", id, rec.OutputPath)
	}

	if demoted == 0 {
		fmt.Println("All completed downloads verified")
		return nil
	}

	if err := store.Save(snap); err != nil {
		return errors.Wrap(err, "state save failed")
	}

	fmt.Printf("Demoted %d records to pending; rerun download to fetch them\n", demoted)
	return nil
}

func fileNonEmpty(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}
