package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/statestore"
)

var statusFailedOnly bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show download state counts",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusFailedOnly, "failed", false, "List failed assets instead of counts")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if statusFailedOnly {
		var rows [][]string
		for id, rec := range snap {
			if rec.Status != statestore.StatusFailed {
				continue
			}
			rows = append(rows, []string{id, rec.Error})
		}
		if len(rows) == 0 {
			fmt.Println("No failed downloads")
			return nil
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		fmt.Println(renderTable([]string{"ASSET", "ERROR"}, rows))
		return nil
	}

	completed, failed, pending := snap.Counts()
	fmt.Println(renderTable(
		[]string{"STATUS", "COUNT"},
		[][]string{
			{"completed", strconv.Itoa(completed)},
			{"failed", strconv.Itoa(failed)},
			{"pending", strconv.Itoa(pending)},
			{"total", strconv.Itoa(len(snap))},
		},
	))
	return nil
}
