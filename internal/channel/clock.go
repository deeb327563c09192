package channel

import "time"

type (
	// Clock reports the time used to pace manual connects
	Clock func() time.Time

	// Timer fires once per Reset. The Manager keeps a single Timer for the
	// pending reconnect and reuses it across attempts
	Timer interface {
		Fired() <-chan time.Time
		Reset(delay time.Duration) bool
		Stop() bool
	}

	// TimerConstructor arms a new Timer for delay
	TimerConstructor func(delay time.Duration) Timer

	wallTimer struct {
		t *time.Timer
	}
)

// WallTimer arms a Timer backed by the runtime's timers
func WallTimer(delay time.Duration) Timer {
	return wallTimer{t: time.NewTimer(delay)}
}

func (w wallTimer) Fired() <-chan time.Time { return w.t.C }
func (w wallTimer) Reset(delay time.Duration) bool { return w.t.Reset(delay) }
func (w wallTimer) Stop() bool { return w.t.Stop() }
