package fsm

// RunRequest is the FSM input
type RunRequest struct {
	IndexPath string
	OutputDir string
}

// RunResponse is the FSM output (accumulated across transitions)
type RunResponse struct {
	// From ParseCatalog
	Found int

	// From Download
	Succeeded  int
	Failed     int
	Skipped    int
	Incomplete int

	// From Finalize
	Status string
}

// State names
const (
	StateParseCatalog = "parse_catalog"
	StateDownload     = "download"
	StateFinalize     = "finalize"
	StateFailed       = "failed"
)

// Terminal run statuses
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusHadErrors  = "had_errors"
)
