package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter throttles how often each client may hit the search service.
// Keys are client addresses, which the client cannot mint freely the way it
// can drop a cookie.
type ClientLimiter struct {
	limiters map[string]*clientEntry
	mu       sync.RWMutex
	config   RateLimitConfig
	now      func() time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func NewClientLimiter(config RateLimitConfig) *ClientLimiter {
	return &ClientLimiter{
		limiters: make(map[string]*clientEntry),
		config:   config,
		now:      time.Now,
	}
}

func (p *ClientLimiter) GetLimiter(client string) *rate.Limiter {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.limiters[client]
	if !exists {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(p.config.RequestsPerSecond), p.config.BurstSize),
		}
		p.limiters[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (p *ClientLimiter) Allow(client string) bool {
	return p.GetLimiter(client).Allow()
}

// Prune drops limiters unused for longer than maxIdle. By then their bucket
// has refilled, so a fresh limiter behaves the same.
func (p *ClientLimiter) Prune(maxIdle time.Duration) int {
	cutoff := p.now().Add(-maxIdle)

	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for client, entry := range p.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(p.limiters, client)
			n++
		}
	}
	return n
}

func (p *ClientLimiter) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.limiters)
}
