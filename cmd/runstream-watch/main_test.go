package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/pkg/api"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		status api.Status
		err    error
		code   int
	}{
		{"completed", api.StatusCompleted, nil, exitCompleted},
		{"failed", api.StatusFailed, nil, exitFailed},
		{"timeout", api.StatusRunning, context.DeadlineExceeded, exitAborted},
		{"disconnected", api.StatusRunning, ErrDisconnected, exitAborted},
		{"idle", api.StatusIdle, context.Canceled, exitAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := execution.Run{Status: tt.status}
			assert.Equal(t, tt.code, exitCode(r, tt.err))
		})
	}
}

func TestLoadConfigRequiresFlowID(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLOW_ID", "")

	_, err := loadConfig()
	assert.ErrorIs(t, err, ErrMissingFlowID)
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLOW_ID", "42")
	t.Setenv("ORIGIN", "http://localhost:9000")

	cfg, err := loadConfig()
	if assert.NoError(t, err) {
		assert.Equal(t, "42", cfg.FlowID)
		assert.Equal(t, "http://localhost:9000", cfg.Origin)
	}
}

func TestSession(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.UserID = "user-1"

	w := &watcher{cfg: cfg}
	sess, err := w.session()
	if assert.NoError(t, err) {
		assert.Equal(t, "user-1", sess.UserID())
		assert.False(t, sess.IsAuthenticated())
	}

	cfg.TokenFile = filepath.Join(t.TempDir(), "token")
	sess, err = w.session()
	if assert.NoError(t, err) {
		assert.True(t, sess.IsAuthenticated())
	}
}

func TestSetupPanelStoresExplicitState(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewDefaultConfig()
	cfg.UserID = "user-1"
	cfg.PreferenceURL = "file://" + t.TempDir()
	minimized := true
	cfg.PanelMinimized = &minimized

	w := &watcher{cfg: cfg}
	w.setupPanel(ctx)
	assert.True(t, w.panel.Minimized())
	w.closePreferences()

	cfg.PanelMinimized = nil
	w = &watcher{cfg: cfg}
	w.setupPanel(ctx)
	assert.True(t, w.panel.Minimized())
	w.closePreferences()
}

func TestSetupPanelWithoutPreferences(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.PreferenceURL = "no-scheme"

	w := &watcher{cfg: cfg}
	w.setupPanel(context.Background())
	assert.False(t, w.panel.Minimized())
	assert.Nil(t, w.prefs)
}
