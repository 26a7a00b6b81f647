// Package ratelimit implements a per-user token bucket limiter for the
// chat endpoints. Thread-safe. No background goroutines — buckets are
// refilled lazily on each Allow call and idle buckets are pruned inline.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a user has exhausted their token bucket.
var ErrRateLimited = errors.New("rate limit exceeded")

// Buckets idle longer than this are dropped on the next Allow call,
// bounding memory for one-off API keys.
const idleTTL = 30 * time.Minute

// Config configures the token bucket limiter.
type Config struct {
	RequestsPerMinute int // Tokens added per minute. 0 = unlimited (Allow always succeeds).
	Burst             int // Maximum tokens in a bucket. 0 = defaults to RequestsPerMinute.
}

// Limiter is a per-user token bucket limiter. Each user gets an
// independent bucket; one chatty user cannot exhaust another's quota.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewLimiter creates a limiter with the given configuration.
// A zero RequestsPerMinute disables limiting entirely.
func NewLimiter(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.RequestsPerMinute) / 60.0,
		burst:   float64(burst),
	}
}

// Allow consumes one token from the user's bucket, refilling it first
// based on elapsed time. Returns ErrRateLimited when the bucket is empty.
func (l *Limiter) Allow(userID string) error {
	if l.rate <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)

	b, ok := l.buckets[userID]
	if !ok {
		// First request starts with a full bucket.
		b = &bucket{tokens: l.burst, lastSeen: now}
		l.buckets[userID] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}

// prune drops buckets untouched for longer than idleTTL.
// Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(l.buckets, id)
		}
	}
}
