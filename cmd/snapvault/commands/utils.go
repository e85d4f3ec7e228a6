package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"snapvault/internal/config"
	"snapvault/pkg/errors"
	"snapvault/pkg/statestore"
)

// openStateStore selects the configured state backend, rooted in the output
// directory.
func openStateStore(cfg *config.Config) (statestore.Store, error) {
	switch cfg.StateBackend {
	case config.BackendSQLite:
		store, err := statestore.NewSQLiteStore(statestore.SQLitePath(cfg.OutputDir))
		return store, errors.Wrap(err, "failed to open sqlite state store")
	default:
		return statestore.NewJSONStore(statestore.JSONPath(cfg.OutputDir)), nil
	}
}

// ensureDirectories creates the output layout before a run
func ensureDirectories(cfg *config.Config) error {
	for _, dir := range []string{cfg.OutputDir, cfg.ImagesDir(), cfg.VideosDir(), cfg.FSMDBPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}

// renderTable renders headers and rows with left-aligned labels and
// right-aligned numeric columns.
func renderTable(headers []string, rows [][]string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i > 0 {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
