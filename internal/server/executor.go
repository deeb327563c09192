package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
	"github.com/kode4food/runstream/pkg/util"
)

type (
	// Executor starts a run of a flow. It returns once the run is accepted;
	// progress is reported through the Hub
	Executor interface {
		Execute(ctx context.Context, flowID api.FlowID, runID string) error
	}

	// Simulator is an Executor that walks each run through a fixed number
	// of steps, publishing an update per step
	Simulator struct {
		hub      *Hub
		steps    int
		interval time.Duration
		ctx      context.Context
		cancel   context.CancelFunc
		wg       sync.WaitGroup
		mu       sync.Mutex
		active   util.Set[api.FlowID]
	}
)

const (
	DefaultSimulatedSteps    = 4
	DefaultSimulatedInterval = 500 * time.Millisecond
)

// ErrAlreadyRunning is returned when a flow already has a run in progress
var ErrAlreadyRunning = errors.New("flow already running")

var _ Executor = (*Simulator)(nil)

// NewSimulator creates a Simulator publishing to hub
func NewSimulator(hub *Hub, steps int, interval time.Duration) *Simulator {
	if steps < 1 {
		steps = DefaultSimulatedSteps
	}
	if interval <= 0 {
		interval = DefaultSimulatedInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		hub:      hub,
		steps:    steps,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Execute starts a simulated run in the background
func (s *Simulator) Execute(
	_ context.Context, flowID api.FlowID, runID string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	if !s.active.Add(flowID) {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, flowID)
	}

	s.wg.Go(func() {
		defer s.finish(flowID)
		s.run(flowID, runID)
	})
	return nil
}

// Stop cancels simulated runs and waits for them to exit
func (s *Simulator) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Simulator) run(flowID api.FlowID, runID string) {
	slog.Info("Simulated run started",
		log.FlowID(flowID),
		log.RunID(runID))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for step := 1; step <= s.steps; step++ {
		select {
		case <-s.ctx.Done():
			s.hub.Publish(api.NewUpdate(flowID).
				WithStatus(api.StatusFailed).
				WithMessage("Relay shutting down").
				WithTimestamp(time.Now()))
			return
		case <-ticker.C:
		}

		node := fmt.Sprintf("step-%d", step)
		u := api.NewUpdate(flowID).
			WithNode(node).
			WithTimestamp(time.Now())
		if step < s.steps {
			u.WithStatus(api.StatusRunning).
				WithProgress(step * 100 / s.steps).
				WithMessage(fmt.Sprintf("Completed %s of %d", node, s.steps))
		} else {
			u.WithStatus(api.StatusCompleted).
				WithProgress(100).
				WithMessage("Execution finished").
				WithResponse(fmt.Sprintf("Run %s finished", runID))
		}
		s.hub.Publish(u)
	}

	slog.Info("Simulated run finished",
		log.FlowID(flowID),
		log.RunID(runID))
}

func (s *Simulator) finish(flowID api.FlowID) {
	s.active.Remove(flowID)
}
