package channel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/runstream/internal/channel"
	"github.com/kode4food/runstream/internal/config"
)

func TestFixedInterval(t *testing.T) {
	p := channel.FixedInterval(3 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 3*time.Second, p.Delay(attempt))
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		attempt  int
		expected time.Duration
	}{
		{"fixed", config.BackoffFixed, 4, time.Second},
		{"linear_first", config.BackoffLinear, 1, time.Second},
		{"linear_third", config.BackoffLinear, 3, 3 * time.Second},
		{"exponential_first", config.BackoffExponential, 1, time.Second},
		{"exponential_fourth", config.BackoffExponential, 4, 8 * time.Second},
		{"exponential_capped", config.BackoffExponential, 10, 30 * time.Second},
		{"exponential_overflow", config.BackoffExponential, 400, 30 * time.Second},
		{"unknown_type", "wobbly", 3, time.Second},
		{"zero_attempt", config.BackoffLinear, 0, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := channel.Backoff{
				Type: tt.typ,
				Base: time.Second,
				Max:  30 * time.Second,
			}
			assert.Equal(t, tt.expected, p.Delay(tt.attempt))
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Channel
	p := channel.PolicyFromConfig(cfg)
	assert.Equal(t, config.BackoffFixed, p.Type)
	assert.Equal(t, cfg.ReconnectInterval, p.Base)
	assert.Equal(t, cfg.ReconnectInterval, p.Delay(5))
}
