package execution

import (
	"sync"

	"github.com/kode4food/runstream/pkg/api"
)

type (
	// Registry hands out one Tracker per flow id
	Registry struct {
		mu       sync.Mutex
		trackers map[api.FlowID]*entry
		opts     []Option
		onCreate []func(*Tracker)
	}

	entry struct {
		tracker *Tracker
		hooks   sync.Once
	}

	// RegistryOption configures a Registry
	RegistryOption func(*Registry)
)

// WithTrackerOptions applies opts to every Tracker the Registry creates
func WithTrackerOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.opts = append(r.opts, opts...)
	}
}

// OnCreate registers fn to be called once for each new Tracker. No caller
// receives the Tracker until its hooks have returned, so a hook must not
// request its own flow from the Registry
func OnCreate(fn func(*Tracker)) RegistryOption {
	return func(r *Registry) {
		r.onCreate = append(r.onCreate, fn)
	}
}

// NewRegistry creates an empty Registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		trackers: map[api.FlowID]*entry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the Tracker for flowID, creating it if needed
func (r *Registry) Get(flowID api.FlowID) *Tracker {
	r.mu.Lock()
	e, ok := r.trackers[flowID]
	if !ok {
		e = &entry{tracker: NewTracker(flowID, r.opts...)}
		r.trackers[flowID] = e
	}
	r.mu.Unlock()
	return r.ready(e)
}

// Lookup returns the Tracker for flowID if one exists
func (r *Registry) Lookup(flowID api.FlowID) (*Tracker, bool) {
	r.mu.Lock()
	e, ok := r.trackers[flowID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	return r.ready(e), true
}

func (r *Registry) ready(e *entry) *Tracker {
	e.hooks.Do(func() {
		for _, fn := range r.onCreate {
			fn(e.tracker)
		}
	})
	return e.tracker
}

// Handle routes an execution update to the Tracker of its flow. Updates for
// flows nobody is tracking are dropped
func (r *Registry) Handle(msg *api.Message) {
	if msg == nil || msg.Type != api.TypeExecutionUpdate || msg.Update == nil {
		return
	}
	if t, ok := r.Lookup(msg.Update.FlowID); ok {
		t.Apply(msg.Update)
	}
}

// Len returns the number of trackers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trackers)
}
