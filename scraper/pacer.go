package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive network fetches so that at least delay passes
// between one fetch finishing and the next one starting. The first fetch
// never waits.
type Pacer struct {
	mu      sync.Mutex
	limit   rate.Limit
	limiter *rate.Limiter
}

func NewPacer(delay time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Pacer{limit: limit, limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next fetch may start.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()
	return limiter.Wait(ctx)
}

// Done marks the end of a fetch. The delay before the next fetch counts
// from now.
func (p *Pacer) Done() {
	limiter := rate.NewLimiter(p.limit, 1)
	limiter.AllowN(time.Now(), 1)
	p.mu.Lock()
	p.limiter = limiter
	p.mu.Unlock()
}
