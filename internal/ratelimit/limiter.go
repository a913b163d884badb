// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per key, all sharing the configured rate
// and burst. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	nowFunc  func() time.Time // injectable clock for testing
}

// NewLimiter creates a rate limiter with the given rate (tokens/sec) and burst size.
// The burst size also serves as the initial number of tokens available.
func NewLimiter(perSecond float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		nowFunc:  time.Now,
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	b, ok := l.limiters[key]
	if !ok {
		b = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = b
	}
	return b
}

// Allow checks if a request for the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bucket(key).AllowN(l.nowFunc(), 1)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Read-only analytics get generous limits; walk steps, which mutate the
// graph and persist it, get tighter ones.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"ideograph_walk_step":  NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"ideograph_probe":      NewLimiter(1.0, 10),      // 60/minute, burst 10
		"ideograph_tensions":   NewLimiter(1.0, 10),      // 60/minute, burst 10
		"ideograph_spread":     NewLimiter(1.0, 10),      // 60/minute, burst 10
		"ideograph_attractors": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"ideograph_voids":      NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"ideograph_forks":      NewLimiter(1.0, 10),      // 60/minute, burst 10
		"ideograph_graph":      NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"ideograph_stance":     NewLimiter(1.0, 10),      // 60/minute, burst 10
		"ideograph_export":     NewLimiter(5.0/60.0, 2),  // 5/minute, burst 2
		"ideograph_validate":   NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error if rate limited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}

	if !limiter.Allow(toolName) {
		return fmt.Errorf("rate limit exceeded for %s, please try again shortly", toolName)
	}

	return nil
}
