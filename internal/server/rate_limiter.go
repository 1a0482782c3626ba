package server

import (
	"time"

	"golang.org/x/time/rate"
)

// newLimiter builds the token bucket guarding one connection's inbound
// frames: Burst tokens, refilled at Burst per RefillInterval.
func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return rate.NewLimiter(rate.Every(interval/time.Duration(burst)), burst)
}
