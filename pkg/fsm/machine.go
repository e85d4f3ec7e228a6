// Package fsm drives one download run as a finite state machine: parse the
// export index, run the worker pool over the assets, then summarize. Fatal
// errors (bad index, no entries) abort; per-asset failures do not.
package fsm

import (
	"context"

	"github.com/superfly/fsm"

	"snapvault/pkg/catalog"
	"snapvault/pkg/errors"
	"snapvault/pkg/pipeline"
)

// Machine holds dependencies for FSM transitions
type Machine struct {
	coordinator *pipeline.Coordinator
	maxRetries  int

	// assets carries the parsed catalog between states within this process.
	assets []catalog.Asset
}

// NewMachine creates a new FSM machine with dependencies
func NewMachine(coordinator *pipeline.Coordinator, maxRetries int) *Machine {
	return &Machine{coordinator: coordinator, maxRetries: maxRetries}
}

// Register registers the download run FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[RunRequest, RunResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[RunRequest, RunResponse](manager, "memory-download").
		Start(StateParseCatalog, m.handleParseCatalog).
		To(StateDownload, m.handleDownload).
		To(StateFinalize, m.handleFinalize).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
