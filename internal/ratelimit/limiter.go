// Package ratelimit throttles MCP tool calls with token buckets.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Limiter is a token bucket. It is safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  int     // capacity and initial token count
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewLimiter creates a full bucket refilling at rate tokens per second.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:   rate,
		burst:  burst,
		tokens: float64(burst),
		now:    time.Now,
	}
}

// Allow takes a token if one is available. Otherwise it reports how long
// until the next token; with a zero rate that wait is unbounded and
// returned as -1.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() {
		if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
			l.tokens = math.Min(float64(l.burst), l.tokens+l.rate*elapsed)
		}
	}
	l.last = now

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, -1
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default per-tool limits. Generation writes
// files and is the most expensive call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"battsim_generate": NewLimiter(6.0/60.0, 2), // 6/minute, burst 2
		"battsim_validate": NewLimiter(30.0/60.0, 5),
		"battsim_schema":   NewLimiter(1.0, 10),
	}
}

// CheckLimit takes a token for toolName. Tools without a limiter are
// never throttled.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	l, ok := limiters[toolName]
	if !ok {
		return nil
	}
	allowed, wait := l.Allow()
	if allowed {
		return nil
	}
	if wait < 0 {
		return fmt.Errorf("rate limit exceeded for %s", toolName)
	}
	return fmt.Errorf("rate limit exceeded for %s, retry in %s", toolName, wait.Round(time.Second))
}
