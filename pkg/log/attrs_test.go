package log_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/runstream/pkg/api"
	"github.com/kode4food/runstream/pkg/log"
)

func TestFlowID(t *testing.T) {
	attr := log.FlowID(api.FlowID("42"))
	assertAttrEqual(t, attr, "flow_id", "42")
}

func TestRunID(t *testing.T) {
	attr := log.RunID("run-abc")
	assertAttrEqual(t, attr, "run_id", "run-abc")
}

func TestUserID(t *testing.T) {
	attr := log.UserID("user-1")
	assertAttrEqual(t, attr, "user_id", "user-1")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.StatusCompleted)
	assertAttrEqual(t, attr, "status", "completed")
}

func TestURL(t *testing.T) {
	attr := log.URL("wss://example.com/ws")
	assertAttrEqual(t, attr, "url", "wss://example.com/ws")
}

func TestAttemptAndDelay(t *testing.T) {
	attr := log.Attempt(3)
	assert.Equal(t, "attempt", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())

	attr = log.Delay(2 * time.Second)
	assert.Equal(t, "delay", attr.Key)
	assert.Equal(t, 2*time.Second, attr.Value.Duration())
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errors.New("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
