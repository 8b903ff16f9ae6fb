// Package ratelimit: token bucket на пользователя поверх golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Pool struct {
	mu    sync.Mutex
	m     map[int64]*entry
	rps   rate.Limit
	burst int
	now   func() time.Time
}

func New(rps float64, burst int) *Pool {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &Pool{
		m:     make(map[int64]*entry),
		rps:   rate.Limit(rps),
		burst: burst,
		now:   time.Now,
	}
}

func (p *Pool) get(key int64) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.m[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.m[key] = e
	}
	e.lastSeen = p.now()
	return e.limiter
}

func (p *Pool) Allow(key int64) bool {
	return p.get(key).AllowN(p.now(), 1)
}

// Sweep удаляет лимитеры, не использованные дольше idle.
func (p *Pool) Sweep(idle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-idle)
	n := 0
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
			n++
		}
	}
	return n
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

// Run периодически чистит пул до отмены ctx.
func (p *Pool) Run(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Sweep(idle)
		}
	}
}
