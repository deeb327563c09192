package execution_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kode4food/runstream/internal/assert"
	"github.com/kode4food/runstream/internal/execution"
	"github.com/kode4food/runstream/pkg/api"
)

func TestRegistryGetOrCreate(t *testing.T) {
	as := assert.New(t)

	var created []api.FlowID
	reg := execution.NewRegistry(
		execution.OnCreate(func(tr *execution.Tracker) {
			created = append(created, tr.FlowID())
		}),
	)

	a := reg.Get("a")
	as.Same(a, reg.Get("a"))
	b := reg.Get("b")
	as.NotSame(a, b)
	as.Equal(2, reg.Len())
	as.Equal([]api.FlowID{"a", "b"}, created)

	got, ok := reg.Lookup("a")
	as.True(ok)
	as.Same(a, got)
	_, ok = reg.Lookup("c")
	as.False(ok)
}

func TestRegistryTrackerOptions(t *testing.T) {
	as := assert.New(t)

	reg := execution.NewRegistry(
		execution.WithTrackerOptions(
			execution.WithClock(func() time.Time { return testNow }),
		),
	)
	tr := reg.Get(testFlowID)
	tr.Begin("")
	as.True(testNow.Equal(tr.Snapshot().Log[0].Timestamp))
}

func TestRegistryHandleRoutes(t *testing.T) {
	as := assert.New(t)

	reg := execution.NewRegistry()
	a := reg.Get("a")
	b := reg.Get("b")

	reg.Handle(api.NewUpdateMessage(api.NewUpdate("a").WithProgress(30)))
	reg.Handle(api.NewUpdateMessage(api.NewUpdate("z").WithProgress(90)))
	reg.Handle(api.NewErrorMessage("boom"))
	reg.Handle(nil)

	as.RunStatus(a.Snapshot(), api.StatusRunning, 30)
	as.RunStatus(b.Snapshot(), api.StatusIdle, 0)
	as.Equal(2, reg.Len())
}

func TestRegistryHooksRunBeforeConcurrentGet(t *testing.T) {
	as := assert.New(t)

	var hooked atomic.Int32
	release := make(chan struct{})
	reg := execution.NewRegistry(
		execution.OnCreate(func(*execution.Tracker) {
			<-release
			hooked.Add(1)
		}),
	)

	var wg sync.WaitGroup
	results := make([]int32, 8)
	for i := range results {
		wg.Go(func() {
			reg.Get(testFlowID)
			results[i] = hooked.Load()
		})
	}

	as.Never(func() bool {
		return hooked.Load() > 0
	}, 30*time.Millisecond, "hook ran before release")
	close(release)
	wg.Wait()

	as.Equal(int32(1), hooked.Load())
	for _, seen := range results {
		as.Equal(int32(1), seen)
	}
	as.Equal(1, reg.Len())
}
