// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter implements a per-key token bucket. Each key gets its own bucket
// with the configured refill rate and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size, also the initial token count
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter creates a rate limiter with the given refill rate (tokens/sec)
// and burst size.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow reports whether a request for the given key should proceed, consuming
// one token when it does.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += l.rate * elapsed
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.lastCheck = now
	}

	if b.tokens < 1.0 {
		return false
	}
	b.tokens--
	return true
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters. Cheap
// read-only tools get generous limits; tools that mutate the population or
// burn a whole tick of compute are held tighter.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"swarm_status":       NewLimiter(1.0, 10),      // 60/minute, burst 10
		"swarm_metrics":      NewLimiter(1.0, 10),      // 60/minute, burst 10
		"swarm_tick":         NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"swarm_set_triggers": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"swarm_add_agents":   NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"swarm_shock":        NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"swarm_shield_add":   NewLimiter(10.0/60.0, 5), // 10/minute, burst 5
	}
}

// CheckLimit checks the rate limit for a given tool name. It returns nil when
// allowed, or an error when rate limited. Tools without a configured limiter
// are always allowed.
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
