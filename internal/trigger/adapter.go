package trigger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/pkg/log"
)

type (
	// Adapter starts runs for a Tracker's flow and drives the Tracker through
	// the outcome of the start call
	Adapter struct {
		starter Starter
		tracker *execution.Tracker
		live    func() bool
	}

	// AdapterOption configures an Adapter
	AdapterOption func(*Adapter)
)

// WithLive reports whether a channel is delivering updates for the run.
// While it returns true, a successful start leaves completion to those
// updates
func WithLive(live func() bool) AdapterOption {
	return func(a *Adapter) {
		a.live = live
	}
}

// NewAdapter creates an Adapter that starts runs of tracker's flow
func NewAdapter(
	starter Starter, tracker *execution.Tracker, opts ...AdapterOption,
) *Adapter {
	a := &Adapter{
		starter: starter,
		tracker: tracker,
		live:    func() bool { return false },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins a new run and calls the Starter. It returns false without
// calling anything when a run is already in progress. An empty runID is
// replaced by a generated one. A failed call always fails the run
func (a *Adapter) Start(ctx context.Context, runID string) (bool, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	flowID := a.tracker.FlowID()
	if !a.tracker.Begin(runID) {
		slog.Debug("Run already in progress", log.FlowID(flowID))
		return false, nil
	}

	slog.Info("Starting run", log.FlowID(flowID), log.RunID(runID))
	body, err := a.starter.Start(ctx, flowID, runID)
	if err != nil {
		a.tracker.Fail(failureMessage(err))
		return true, err
	}

	if !a.live() {
		a.tracker.Complete(body)
	}
	return true, nil
}

func failureMessage(err error) string {
	msg := err.Error()
	if errors.Is(err, ErrStartFailed) {
		msg = strings.TrimPrefix(msg, ErrStartFailed.Error()+": ")
	}
	return msg
}
