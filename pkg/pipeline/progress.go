package pipeline

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"snapvault/pkg/catalog"
	"snapvault/pkg/statestore"
)

// BarObserver renders a live terminal progress bar with the
// currently-processed asset in the description.
type BarObserver struct {
	bar *progressbar.ProgressBar
}

// NewBarObserver returns an observer writing to stderr.
func NewBarObserver() *BarObserver {
	return &BarObserver{}
}

func (o *BarObserver) Start(total int) {
	o.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (o *BarObserver) Tick(asset catalog.Asset, rec statestore.Record) {
	if o.bar == nil {
		return
	}
	marker := "ok"
	if rec.Status == statestore.StatusFailed {
		marker = "failed"
	}
	o.bar.Describe(fmt.Sprintf("downloading (%s %s %s)",
		asset.Kind, asset.CapturedAt.Format("2006-01-02"), marker))
	_ = o.bar.Add(1)
}

func (o *BarObserver) Finish() {
	if o.bar != nil {
		_ = o.bar.Finish()
	}
}
