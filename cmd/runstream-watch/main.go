package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	app "github.com/kode4food/runstream"
	"github.com/kode4food/runstream/internal/auth"
	"github.com/kode4food/runstream/internal/channel"
	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/internal/preference"
	"github.com/kode4food/runstream/internal/trigger"
	"github.com/kode4food/runstream/internal/view"
	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

type watcher struct {
	cfg     *config.Config
	manager *channel.Manager
	tracker *execution.Tracker
	panel   *view.Panel
	prefs   preference.Store

	outMu sync.Mutex
}

const (
	exitCompleted = 0
	exitFailed    = 1
	exitAborted   = 2

	connectWait = 5 * time.Second
)

var (
	ErrMissingFlowID = errors.New("FLOW_ID is required")
	ErrDisconnected  = errors.New("channel disconnected")
	ErrLoadTokens    = errors.New("failed to load token source")
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailed)
	}

	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	w := &watcher{cfg: cfg}
	code, err := w.run(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(code)
}

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FlowID == "" {
		return nil, ErrMissingFlowID
	}
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level := log.ParseLevel(cfg.LogLevel)
	env := os.Getenv("ENV")
	logger := log.NewWithWriter(
		os.Stderr, app.Name+"-watch", env, app.Version, level,
	)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)
}

func (w *watcher) run(ctx context.Context) (int, error) {
	sess, err := w.session()
	if err != nil {
		return exitFailed, err
	}

	w.manager, err = channel.NewManager(w.cfg.Origin, sess, w.cfg.Channel)
	if err != nil {
		return exitFailed, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go w.manager.Run(runCtx)
	defer func() {
		cancel(nil)
		<-w.manager.Done()
	}()

	flowID := api.FlowID(w.cfg.FlowID)
	reg := execution.NewRegistry()
	w.tracker = reg.Get(flowID)
	w.manager.Subscribe(reg.Handle)

	w.setupPanel(ctx)
	defer w.closePreferences()

	opened := make(chan struct{}, 1)
	w.tracker.Subscribe(func(r execution.Run) {
		w.panel.SetRun(r)
		w.render()
	})
	w.manager.Watch(func(st channel.Status) {
		w.panel.SetChannel(st)
		w.render()
		switch st {
		case channel.StatusOpen:
			select {
			case opened <- struct{}{}:
			default:
			}
		case channel.StatusDisconnected:
			cancel(ErrDisconnected)
		}
	})

	slog.Info("Watching flow",
		log.FlowID(flowID),
		log.URL(w.manager.URL()),
		log.UserID(sess.UserID()))

	w.manager.Connect()
	select {
	case <-opened:
	case <-time.After(connectWait):
		slog.Warn("Channel not open, relying on the trigger response",
			log.FlowID(flowID))
	case <-runCtx.Done():
		return exitAborted, context.Cause(runCtx)
	}

	client, err := trigger.NewClient(w.cfg.Origin, w.cfg.TriggerTimeout)
	if err != nil {
		return exitFailed, err
	}
	adapter := trigger.NewAdapter(
		client, w.tracker, trigger.WithLive(w.manager.IsOpen),
	)
	if _, err := adapter.Start(runCtx, ""); err != nil {
		return exitFailed, err
	}

	waitCtx := runCtx
	if w.cfg.RunTimeout > 0 {
		var stop context.CancelFunc
		waitCtx, stop = context.WithTimeout(runCtx, w.cfg.RunTimeout)
		defer stop()
	}
	r, err := w.tracker.Wait(waitCtx)
	if err != nil {
		err = context.Cause(waitCtx)
	}
	return exitCode(r, err), err
}

func (w *watcher) session() (*channel.Session, error) {
	var tokens auth.TokenSource
	if w.cfg.TokenFile != "" {
		ts, err := auth.NewFileTokenSource(w.cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadTokens, err)
		}
		tokens = ts
	}
	return channel.NewSession(w.cfg.UserID, tokens), nil
}

// setupPanel restores the minimized state. An explicit PANEL_MINIMIZED is
// stored for the next session. Preference errors only cost the saved state
func (w *watcher) setupPanel(ctx context.Context) {
	w.panel = view.NewPanel()

	prefs, err := preference.Open(ctx, w.cfg.PreferenceURL, w.cfg.UserID)
	if err != nil {
		slog.Warn("Preferences unavailable", log.Error(err))
		if w.cfg.PanelMinimized != nil {
			w.panel.SetMinimized(*w.cfg.PanelMinimized)
		}
		return
	}
	w.prefs = prefs

	if m := w.cfg.PanelMinimized; m != nil {
		w.panel.SetMinimized(*m)
		if err := prefs.SetMinimized(ctx, *m); err != nil {
			slog.Warn("Failed to save panel preference", log.Error(err))
		}
		return
	}

	m, err := prefs.Minimized(ctx)
	if err != nil {
		slog.Warn("Failed to read panel preference", log.Error(err))
		return
	}
	w.panel.SetMinimized(m)
}

func (w *watcher) closePreferences() {
	if w.prefs == nil {
		return
	}
	if err := w.prefs.Close(); err != nil {
		slog.Warn("Failed to close preferences", log.Error(err))
	}
}

func (w *watcher) render() {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	_, _ = fmt.Fprintln(os.Stdout, w.panel.View())
}

// exitCode maps the final run to the process exit status: 0 for a
// completed run, 1 for a failed one, 2 when watching stopped early
func exitCode(r execution.Run, err error) int {
	if err != nil && !r.IsDone() {
		return exitAborted
	}
	switch r.Status {
	case api.StatusCompleted:
		return exitCompleted
	case api.StatusFailed:
		return exitFailed
	default:
		return exitAborted
	}
}
