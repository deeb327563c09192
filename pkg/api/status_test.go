package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/runstream/pkg/api"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, api.StatusCompleted, api.StatusCompleted.Normalize())
	assert.Equal(t, api.StatusFailed, api.StatusFailed.Normalize())
	assert.Equal(t, api.StatusRunning, api.StatusRunning.Normalize())
	assert.Equal(t, api.StatusRunning, api.Status("queued").Normalize())
	assert.Equal(t, api.StatusRunning, api.StatusIdle.Normalize())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, api.StatusCompleted.IsTerminal())
	assert.True(t, api.StatusFailed.IsTerminal())
	assert.False(t, api.StatusRunning.IsTerminal())
	assert.False(t, api.StatusIdle.IsTerminal())
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, api.SeverityError, api.StatusFailed.Severity())
	assert.Equal(t, api.SeveritySuccess, api.StatusCompleted.Severity())
	assert.Equal(t, api.SeverityInfo, api.StatusRunning.Severity())
	assert.Equal(t, api.SeverityInfo, api.Status("other").Severity())
}
