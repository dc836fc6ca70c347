package history

import "time"

// Status is the terminal outcome of a recorded run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one finished pipeline invocation.
type Run struct {
	ID          string
	Locator     string
	RangeStart  time.Duration
	RangeEnd    time.Duration
	Model       string
	Transcriber string
	Status      Status
	// Stage is the failing stage tag, empty for successful runs and for
	// runs rejected before any stage started.
	Stage      string
	Error      string
	OutDir     string
	FinalPath  string
	Cues       int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
