package server

import (
	"sync"
	"time"
)

// frameLimiter is a token bucket applied to inbound frames of one connection.
// Frames over the limit are dropped before they reach the log.
type frameLimiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
	now       func() time.Time
}

func newFrameLimiter(cfg RateLimitConfig) *frameLimiter {
	capacity := cfg.Burst
	if capacity <= 0 {
		capacity = 1
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	l := &frameLimiter{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     float64(capacity) / interval.Seconds(),
		now:      time.Now,
	}
	l.lastCheck = l.now()
	return l
}

func (l *frameLimiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if elapsed := now.Sub(l.lastCheck).Seconds(); elapsed > 0 {
		l.tokens = min(l.capacity, l.tokens+elapsed*l.rate)
	}
	l.lastCheck = now

	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
