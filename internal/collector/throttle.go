package collector

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SourceThrottle enforces min_interval_seconds per source within one
// process. Burst 1 keeps a single outstanding request per source.
type SourceThrottle struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func NewSourceThrottle() *SourceThrottle {
	return &SourceThrottle{limiters: make(map[string]*rate.Limiter)}
}

func (t *SourceThrottle) Wait(ctx context.Context, src Source) error {
	return t.limiterFor(src.Name, src.MinInterval).Wait(ctx)
}

func (t *SourceThrottle) limiterFor(name string, interval time.Duration) *rate.Limiter {
	t.mu.RLock()
	limiter, ok := t.limiters[name]
	t.mu.RUnlock()
	if ok {
		return limiter
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if limiter, ok := t.limiters[name]; ok {
		return limiter
	}

	if interval <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	t.limiters[name] = limiter
	return limiter
}
