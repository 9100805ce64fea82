package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key, e.g. per remote address.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*entry
	capacity int
	refill   rate.Limit
	idleTTL  time.Duration
	now      func() time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// New creates a limiter allowing bursts of capacity and refilling
// refillPerSec tokens per second. Capacity 0 disables limiting.
func New(capacity, refillPerSec float64) *Limiter {
	return &Limiter{
		m:        make(map[string]*entry),
		capacity: int(capacity),
		refill:   rate.Limit(refillPerSec),
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

// Enabled reports whether the limiter ever denies.
func (l *Limiter) Enabled() bool { return l != nil && l.capacity > 0 }

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	now := l.now()
	l.mu.Lock()
	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.refill, l.capacity)}
		l.m[key] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// Prune drops buckets idle for longer than the idle TTL and returns how many
// were removed. A dropped bucket comes back full.
func (l *Limiter) Prune() int {
	if !l.Enabled() {
		return 0
	}
	cutoff := l.now().Add(-l.idleTTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, e := range l.m {
		if e.seen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
