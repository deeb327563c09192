package execution

import (
	"slices"
	"time"

	"github.com/kode4food/runstream/pkg/api"
)

type (
	// Run is a snapshot of one execution attempt of a flow
	Run struct {
		StartedAt   time.Time
		UpdatedAt   time.Time
		FlowID      api.FlowID
		RunID       string
		Status      api.Status
		Message     string
		CurrentNode string
		Log         []LogEntry
		Progress    int
	}

	// LogEntry is a single line of a run's log
	LogEntry struct {
		Timestamp time.Time
		Severity  api.Severity
		Message   string
		NodeID    string
	}
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// IsActive reports whether the run is in progress
func (r Run) IsActive() bool {
	return r.Status == api.StatusRunning
}

// IsDone reports whether the run reached a terminal status
func (r Run) IsDone() bool {
	return r.Status.IsTerminal()
}

// LastEntry returns the most recent log entry, if any
func (r Run) LastEntry() (LogEntry, bool) {
	if len(r.Log) == 0 {
		return LogEntry{}, false
	}
	return r.Log[len(r.Log)-1], true
}

func (r Run) clone() Run {
	r.Log = slices.Clone(r.Log)
	return r
}

func clampProgress(p int) int {
	return min(max(p, MinProgress), MaxProgress)
}
