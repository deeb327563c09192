package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

type (
	// Tracker follows the runs of a single flow. Mutations are serialized,
	// and every change publishes a full Run snapshot to subscribers in the
	// order the changes were applied
	Tracker struct {
		now    func() time.Time
		flowID api.FlowID

		mu  sync.Mutex
		run Run

		pubMu   sync.Mutex
		subMu   sync.Mutex
		nextSub int
		subs    map[int]RunFunc
	}

	// Option configures a Tracker
	Option func(*Tracker)

	// RunFunc receives Run snapshots. It is called with the Tracker's
	// publication lock held, so it must not mutate the same Tracker
	RunFunc func(Run)
)

const (
	// DefaultUpdateMessage is logged for updates that carry no message
	DefaultUpdateMessage = "Execution update"

	startMessage = "Starting execution of flow %s"
)

// WithClock replaces the clock used to stamp log entries
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates an idle Tracker for flowID
func NewTracker(flowID api.FlowID, opts ...Option) *Tracker {
	t := &Tracker{
		now:    time.Now,
		flowID: flowID,
		run: Run{
			FlowID: flowID,
			Status: api.StatusIdle,
		},
		subs: map[int]RunFunc{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FlowID returns the flow this Tracker follows
func (t *Tracker) FlowID() api.FlowID {
	return t.flowID
}

// Snapshot returns a copy of the current run
func (t *Tracker) Snapshot() Run {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run.clone()
}

// Handle applies msg if it is an execution update for this Tracker's flow.
// Any other message is ignored
func (t *Tracker) Handle(msg *api.Message) {
	if u := msg.UpdateFor(t.flowID); u != nil {
		t.Apply(u)
	}
}

// Apply folds an execution update into the run. It returns false only when
// the update concerns another flow. Once the run has finished its status is
// frozen, but later updates are still logged
func (t *Tracker) Apply(u *api.ExecutionUpdate) bool {
	if u == nil || !u.MatchesFlow(t.flowID) {
		return false
	}
	return t.mutate(func(r *Run, now time.Time) bool {
		if r.Status == api.StatusIdle {
			r.Status = api.StatusRunning
			r.StartedAt = now
		}

		sev := api.SeverityInfo
		if u.Status != nil {
			st := u.Status.Normalize()
			sev = st.Severity()
			if r.Status.IsTerminal() {
				if st != r.Status {
					slog.Debug("Keeping status of finished run",
						log.FlowID(t.flowID),
						log.RunID(r.RunID),
						log.Status(r.Status))
				}
			} else {
				r.Status = st
			}
		}
		if u.Progress != nil {
			r.setProgress(*u.Progress)
		}
		if u.Message != nil {
			r.Message = *u.Message
		}
		if u.CurrentNode != nil {
			r.CurrentNode = *u.CurrentNode
		}

		ts := now
		if u.Timestamp != nil && !u.Timestamp.IsZero() {
			ts = u.Timestamp.Time
		}
		entry := LogEntry{
			Timestamp: ts,
			Severity:  sev,
			Message:   DefaultUpdateMessage,
		}
		if u.Message != nil && *u.Message != "" {
			entry.Message = *u.Message
		}
		if u.CurrentNode != nil {
			entry.NodeID = *u.CurrentNode
		}
		r.Log = append(r.Log, entry)

		if resp := u.Response(); resp != "" {
			r.Log = append(r.Log, LogEntry{
				Timestamp: ts,
				Severity:  api.SeverityResponse,
				Message:   resp,
				NodeID:    entry.NodeID,
			})
		}
		return true
	})
}

// Begin starts a new run, resetting progress, message, and log. It is a
// no-op returning false while a run is already in progress
func (t *Tracker) Begin(runID string) bool {
	return t.mutate(func(r *Run, now time.Time) bool {
		if r.Status == api.StatusRunning {
			return false
		}
		*r = Run{
			StartedAt: now,
			FlowID:    t.flowID,
			RunID:     runID,
			Status:    api.StatusRunning,
			Log: []LogEntry{{
				Timestamp: now,
				Severity:  api.SeverityInfo,
				Message:   fmt.Sprintf(startMessage, t.flowID),
			}},
		}
		return true
	})
}

// Complete finishes the current run with the raw response body
func (t *Tracker) Complete(body string) bool {
	return t.mutate(func(r *Run, now time.Time) bool {
		if r.Status != api.StatusRunning {
			return false
		}
		r.Status = api.StatusCompleted
		r.Progress = MaxProgress
		r.Log = append(r.Log, LogEntry{
			Timestamp: now,
			Severity:  api.SeverityResponse,
			Message:   body,
		})
		return true
	})
}

// Fail finishes the current run, recording reason as its message
func (t *Tracker) Fail(reason string) bool {
	return t.mutate(func(r *Run, now time.Time) bool {
		if r.Status != api.StatusRunning {
			return false
		}
		r.Status = api.StatusFailed
		r.Message = reason
		r.Log = append(r.Log, LogEntry{
			Timestamp: now,
			Severity:  api.SeverityError,
			Message:   reason,
		})
		return true
	})
}

// Subscribe registers fn for every published snapshot. The returned func
// removes the subscription
func (t *Tracker) Subscribe(fn RunFunc) func() {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.subMu.Lock()
		defer t.subMu.Unlock()
		delete(t.subs, id)
	}
}

// Wait blocks until the current run reaches a terminal status or ctx is
// done, returning the last snapshot seen
func (t *Tracker) Wait(ctx context.Context) (Run, error) {
	done := make(chan Run, 1)
	cancel := t.Subscribe(func(r Run) {
		if !r.IsDone() {
			return
		}
		select {
		case done <- r:
		default:
		}
	})
	defer cancel()

	if r := t.Snapshot(); r.IsDone() {
		return r, nil
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return t.Snapshot(), ctx.Err()
	}
}

func (t *Tracker) mutate(fn func(*Run, time.Time) bool) bool {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	now := t.now()
	if !fn(&t.run, now) {
		t.mu.Unlock()
		return false
	}
	t.run.UpdatedAt = now
	snap := t.run.clone()
	t.mu.Unlock()

	for _, fn := range t.subscribers() {
		fn(snap)
	}
	return true
}

func (t *Tracker) subscribers() []RunFunc {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	res := make([]RunFunc, 0, len(t.subs))
	for id := range t.nextSub {
		if fn, ok := t.subs[id]; ok {
			res = append(res, fn)
		}
	}
	return res
}

func (r *Run) setProgress(p int) {
	if p = clampProgress(p); p >= r.Progress {
		r.Progress = p
	}
}
