package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type (
	// Config holds settings for both the relay server and the watch client
	Config struct {
		// Relay server
		APIHost  string
		APIPort  int
		LogLevel string

		// Client session
		Origin    string
		UserID    string
		TokenFile string

		// Channel
		Channel ChannelConfig

		// Trigger & watch
		FlowID         string
		TriggerTimeout time.Duration
		RunTimeout     time.Duration

		// Preferences
		PreferenceURL  string
		PanelMinimized *bool

		// Simulated executor
		SimulatedSteps    int
		SimulatedInterval time.Duration

		ShutdownTimeout time.Duration
	}

	// ChannelConfig controls connection pacing and the reconnect policy
	ChannelConfig struct {
		Backoff              string
		ReconnectInterval    time.Duration
		MaxBackoff           time.Duration
		MinConnectInterval   time.Duration
		MaxReconnectAttempts int
		AutoReconnect        bool
	}
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	DefaultOrigin  = "http://localhost:8080"
	MaxTCPPort     = 65535

	BackoffFixed       = "fixed"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"

	DefaultBackoff              = BackoffFixed
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxBackoff           = time.Minute
	DefaultMinConnectInterval   = 5 * time.Millisecond
	DefaultMaxReconnectAttempts = 5
	DefaultTriggerTimeout       = 30 * time.Second
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultPreferenceURL        = "mem://"
	DefaultSimulatedSteps       = 4
	DefaultSimulatedInterval    = 500 * time.Millisecond

	MaxReconnectAttempts = 1000
	MaxReconnectInterval = 10 * time.Minute
	MaxTriggerTimeout    = time.Hour
	MaxRunTimeout        = 7 * 24 * time.Hour
	MaxSimulatedSteps    = 1000
)

var (
	ErrInvalidAPIPort           = errors.New("invalid API port")
	ErrInvalidOrigin            = errors.New("origin is required")
	ErrInvalidReconnectInterval = errors.New(
		"reconnect interval must be positive",
	)
	ErrInvalidMinConnectInterval = errors.New(
		"min connect interval cannot be negative",
	)
	ErrInvalidMaxAttempts = errors.New(
		"max reconnect attempts cannot be negative",
	)
	ErrMaxBackoffTooSmall = errors.New(
		"max backoff must be >= reconnect interval",
	)
	ErrInvalidBackoff        = errors.New("invalid reconnect backoff type")
	ErrInvalidTriggerTimeout = errors.New("trigger timeout must be positive")
	ErrInvalidRunTimeout     = errors.New("run timeout cannot be negative")
	ErrInvalidSimulation     = errors.New("simulated steps must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// relay, the channel, and the trigger client
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:  DefaultAPIPort,
		APIHost:  DefaultAPIHost,
		LogLevel: "info",
		Origin:   DefaultOrigin,
		Channel: ChannelConfig{
			Backoff:              DefaultBackoff,
			ReconnectInterval:    DefaultReconnectInterval,
			MaxBackoff:           DefaultMaxBackoff,
			MinConnectInterval:   DefaultMinConnectInterval,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
			AutoReconnect:        true,
		},
		TriggerTimeout:  DefaultTriggerTimeout,
		PreferenceURL:     DefaultPreferenceURL,
		SimulatedSteps:    DefaultSimulatedSteps,
		SimulatedInterval: DefaultSimulatedInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
	}
}

// LoadDotEnv loads variables from the given files (or .env when none are
// named) without overriding variables already present. Missing files are
// not an error
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("invalid env file %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("ORIGIN", &c.Origin)
	loadEnvString("USER_ID", &c.UserID)
	loadEnvString("TOKEN_FILE", &c.TokenFile)
	loadEnvString("FLOW_ID", &c.FlowID)
	loadEnvString("PREFERENCE_URL", &c.PreferenceURL)
	loadEnvString("RECONNECT_BACKOFF", &c.Channel.Backoff)

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_RECONNECT_ATTEMPTS", &c.Channel.MaxReconnectAttempts,
		-1, MaxReconnectAttempts,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"SIMULATED_STEPS", &c.SimulatedSteps, 0, MaxSimulatedSteps,
	); err != nil {
		return err
	}
	if err := loadEnvBool(
		"AUTO_RECONNECT", &c.Channel.AutoReconnect,
	); err != nil {
		return err
	}
	if s := os.Getenv("PANEL_MINIMIZED"); s != "" {
		var v bool
		if err := loadEnvBool("PANEL_MINIMIZED", &v); err != nil {
			return err
		}
		c.PanelMinimized = &v
	}

	if err := loadEnvDuration(
		"RECONNECT_INTERVAL", &c.Channel.ReconnectInterval,
		MaxReconnectInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"MAX_RECONNECT_BACKOFF", &c.Channel.MaxBackoff, MaxReconnectInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"MIN_CONNECT_INTERVAL", &c.Channel.MinConnectInterval,
		MaxReconnectInterval,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"TRIGGER_TIMEOUT", &c.TriggerTimeout, MaxTriggerTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"RUN_TIMEOUT", &c.RunTimeout, MaxRunTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SIMULATED_INTERVAL", &c.SimulatedInterval, MaxReconnectInterval,
	); err != nil {
		return err
	}
	return loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxTriggerTimeout,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.Origin == "" {
		return ErrInvalidOrigin
	}

	if c.TriggerTimeout <= 0 {
		return ErrInvalidTriggerTimeout
	}

	if c.RunTimeout < 0 {
		return ErrInvalidRunTimeout
	}

	if c.SimulatedSteps <= 0 {
		return ErrInvalidSimulation
	}

	return c.Channel.Validate()
}

// Validate checks the channel pacing settings
func (c *ChannelConfig) Validate() error {
	if c.ReconnectInterval <= 0 {
		return ErrInvalidReconnectInterval
	}

	if c.MaxBackoff < c.ReconnectInterval {
		return ErrMaxBackoffTooSmall
	}

	switch c.Backoff {
	case BackoffFixed, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidBackoff, c.Backoff)
	}

	if c.MinConnectInterval < 0 {
		return ErrInvalidMinConnectInterval
	}

	if c.MaxReconnectAttempts < 0 {
		return ErrInvalidMaxAttempts
	}

	return nil
}

// Addr returns the relay listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func loadEnvString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

func loadEnvBool(key string, dst *bool) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = v
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

// loadEnvDuration reads key as a Go duration ("3s", "250ms") and sets *dst
// if it falls within [0, max]
func loadEnvDuration(key string, dst *time.Duration, max time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if d < 0 || d > max {
		return fmt.Errorf("invalid %s: %s out of range [0, %s]", key, d, max)
	}
	*dst = d
	return nil
}
