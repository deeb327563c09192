package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/pkg/api"
)

// Wrapper wraps testify assertions with runstream-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus runstream-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.TriggerTimeout > 0)
	w.True(cfg.Channel.ReconnectInterval > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// RunStatus asserts the status and progress of a run snapshot
func (w *Wrapper) RunStatus(run execution.Run, st api.Status, progress int) {
	w.Helper()
	w.Equal(st, run.Status)
	w.Equal(progress, run.Progress)
}

// RunLogged asserts the severities of a run's log, oldest first
func (w *Wrapper) RunLogged(run execution.Run, sev ...api.Severity) {
	w.Helper()
	got := make([]api.Severity, len(run.Log))
	for i, e := range run.Log {
		got[i] = e.Severity
	}
	w.Equal(sev, got)
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// Never asserts that a condition stays false for the whole duration
func (w *Wrapper) Never(
	condition func() bool, duration time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if condition() {
			w.Fail(msg, args...)
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
}
