package server

import (
	"strings"
	"time"
)

// RateLimitConfig defines the per-connection inbound frame budget: Burst
// frames, refilled evenly over RefillInterval.
type RateLimitConfig struct {
	Burst          int           `mapstructure:"burst"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
}

// Config holds the transport settings including security controls.
type Config struct {
	Addr            string          `mapstructure:"addr"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	MaxMessageSize  int64           `mapstructure:"max_message_size"`
	SendBuffer      int             `mapstructure:"send_buffer"`
	PingInterval    time.Duration   `mapstructure:"ping_interval"`
	PongWait        time.Duration   `mapstructure:"pong_wait"`
	WriteWait       time.Duration   `mapstructure:"write_wait"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// Image frames carry base64 data URLs, so the read limit is sized for a
// roughly 5 MB picture.
const defaultMaxMessageSize = 7 << 20

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBuffer:      256,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

// Sanitize replaces unset or invalid values with defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()

	c.Addr = strings.TrimSpace(c.Addr)
	if c.Addr == "" {
		c.Addr = def.Addr
	} else if !strings.Contains(c.Addr, ":") {
		// A bare port, as platforms set PORT.
		c.Addr = ":" + c.Addr
	}

	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.PongWait <= 0 {
		c.PongWait = def.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = def.WriteWait
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}

	c.AllowedOrigins = parseOrigins(c.AllowedOrigins)
	return c
}

// parseOrigins splits comma separated entries, as they arrive from a single
// environment variable, and drops blanks.
func parseOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, entry := range origins {
		for _, part := range strings.Split(entry, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
