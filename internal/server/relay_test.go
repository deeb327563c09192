package server_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kode4food/runstream/internal/assert"
	"github.com/kode4food/runstream/internal/auth"
	"github.com/kode4food/runstream/internal/channel"
	"github.com/kode4food/runstream/internal/config"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/internal/server"
	"github.com/kode4food/runstream/internal/trigger"
	"github.com/kode4food/runstream/pkg/api"
)

func TestRelayEndToEnd(t *testing.T) {
	as := assert.New(t)

	hub := server.NewHub()
	sim := server.NewSimulator(hub, 4, 10*time.Millisecond)
	srv := server.NewServer(hub, sim)
	ts := httptest.NewServer(srv.SetupRoutes())
	defer func() {
		sim.Stop()
		srv.CloseWebSockets()
		ts.Close()
		hub.Close()
	}()

	sess := channel.NewSession("user-1", auth.Static("secret"))
	mgr, err := channel.NewManager(ts.URL, sess, config.NewDefaultConfig().Channel)
	as.Require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-mgr.Done()
	}()
	go mgr.Run(ctx)

	reg := execution.NewRegistry()
	mgr.Subscribe(reg.Handle)
	tracker := reg.Get("42")

	as.True(mgr.Connect())
	as.Eventually(mgr.IsOpen, 2*time.Second, "channel never opened")
	as.Eventually(func() bool {
		return srv.SocketCount() == 1
	}, 2*time.Second, "relay never registered socket")

	starter, err := trigger.NewClient(ts.URL, time.Second)
	as.Require.NoError(err)
	adapter := trigger.NewAdapter(starter, tracker, trigger.WithLive(mgr.IsOpen))

	ok, err := adapter.Start(ctx, "run-1")
	as.True(ok)
	as.NoError(err)

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	run, err := tracker.Wait(waitCtx)
	as.Require.NoError(err)

	as.RunStatus(run, api.StatusCompleted, 100)
	as.Equal("run-1", run.RunID)
	as.Len(run.Log, 6)
	as.RunLogged(run,
		api.SeverityInfo,
		api.SeverityInfo, api.SeverityInfo, api.SeverityInfo,
		api.SeveritySuccess, api.SeverityResponse,
	)
	as.Equal("Run run-1 finished", run.Log[5].Message)
}
