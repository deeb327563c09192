package api

type (
	// Status is the lifecycle state of an execution run
	Status string

	// Severity classifies a line in a run's log
	Severity string
)

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityError    Severity = "error"
	SeverityResponse Severity = "response"
)

// Normalize maps a reported status onto the run lifecycle. Anything that is
// not an explicit completion or failure means the run is still going
func (s Status) Normalize() Status {
	switch s {
	case StatusCompleted, StatusFailed:
		return s
	default:
		return StatusRunning
	}
}

// IsTerminal returns true for completed and failed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity returns the log severity used for an update with this status
func (s Status) Severity() Severity {
	switch s {
	case StatusFailed:
		return SeverityError
	case StatusCompleted:
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}
