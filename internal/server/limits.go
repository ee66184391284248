package server

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// pollLimiter caps concurrent parked long-poll requests per instance.
// Uses atomic operations for lock-free counting.
type pollLimiter struct {
	current atomic.Int64
	max     int64
}

func newPollLimiter(max int64) *pollLimiter {
	return &pollLimiter{max: max}
}

// Acquire attempts to acquire a poll slot.
// Returns true if successful, false if at capacity.
func (l *pollLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a poll slot.
func (l *pollLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the number of in-flight polls.
func (l *pollLimiter) Current() int64 {
	return l.current.Load()
}

// ipRateLimiters enforces a per-IP token bucket on the publish
// endpoint. Protects against a single misbehaving producer.
type ipRateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

func newIPRateLimiters(perSec float64, burst int) *ipRateLimiters {
	return &ipRateLimiters{
		limiters: make(map[string]*rate.Limiter),
		perSec:   rate.Limit(perSec),
		burst:    burst,
	}
}

// Allow reports whether the given IP may publish now, consuming a token
// if so.
func (l *ipRateLimiters) Allow(ip string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.perSec, l.burst)
		l.limiters[ip] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
