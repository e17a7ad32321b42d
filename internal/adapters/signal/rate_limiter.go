package signal

import (
	"sync"

	"github.com/dkeye/Relay/internal/domain"
	"golang.org/x/time/rate"
)

// EventRateLimiter keeps one token bucket per identity, shared by all of its
// connections.
type EventRateLimiter struct {
	mu    sync.Mutex
	m     map[domain.IdentityCode]*rate.Limiter
	rps   float64
	burst int
}

func NewEventRateLimiter(rps float64, burst int) *EventRateLimiter {
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 40
	}
	return &EventRateLimiter{m: make(map[domain.IdentityCode]*rate.Limiter), rps: rps, burst: burst}
}

func (rl *EventRateLimiter) get(id domain.IdentityCode) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.m[id]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
	rl.m[id] = l
	return l
}

func (rl *EventRateLimiter) Allow(id domain.IdentityCode) bool {
	return rl.get(id).Allow()
}

func (rl *EventRateLimiter) Forget(id domain.IdentityCode) {
	rl.mu.Lock()
	delete(rl.m, id)
	rl.mu.Unlock()
}

func (rl *EventRateLimiter) len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.m)
}
