package channel

import (
	"math"
	"time"

	"github.com/kode4food/runstream/internal/config"
)

type (
	// ReconnectPolicy decides how long to wait before a reconnect attempt.
	// attempt starts at 1 for the first retry after a drop
	ReconnectPolicy interface {
		Delay(attempt int) time.Duration
	}

	// Backoff is the stock ReconnectPolicy. The default is a fixed interval;
	// linear and exponential growth are available for larger fleets, where
	// spreading retries out matters more than reconnecting quickly
	Backoff struct {
		Type string
		Base time.Duration
		Max  time.Duration
	}

	backoffCalculator func(base time.Duration, attempt int) time.Duration
)

var backoffCalculators = map[string]backoffCalculator{
	config.BackoffFixed: func(base time.Duration, _ int) time.Duration {
		return base
	},
	config.BackoffLinear: func(base time.Duration, n int) time.Duration {
		return base * time.Duration(n)
	},
	config.BackoffExponential: func(base time.Duration, n int) time.Duration {
		d := float64(base) * math.Pow(2, float64(n-1))
		if d >= math.MaxInt64 {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(d)
	},
}

var _ ReconnectPolicy = Backoff{}

// FixedInterval returns a policy that always waits d
func FixedInterval(d time.Duration) Backoff {
	return Backoff{Type: config.BackoffFixed, Base: d, Max: d}
}

// PolicyFromConfig builds the Backoff described by cfg
func PolicyFromConfig(cfg config.ChannelConfig) Backoff {
	return Backoff{
		Type: cfg.Backoff,
		Base: cfg.ReconnectInterval,
		Max:  cfg.MaxBackoff,
	}
}

// Delay returns the wait before the given attempt, capped at Max
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	calc, ok := backoffCalculators[b.Type]
	if !ok {
		calc = backoffCalculators[config.BackoffFixed]
	}
	delay := calc(b.Base, attempt)
	if b.Max > 0 && (delay > b.Max || delay < 0) {
		return b.Max
	}
	return delay
}
