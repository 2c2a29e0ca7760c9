package parser

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// hostLimiter spaces out requests that target the same host.
type hostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	interval time.Duration
}

func newHostLimiter(interval time.Duration) *hostLimiter {
	return &hostLimiter{
		limiters: make(map[string]*rate.Limiter),
		interval: interval,
	}
}

// Wait blocks until the host of rawURL may be contacted again.
func (h *hostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.interval <= 0 {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host in %s", rawURL)
	}

	return h.limiterFor(parsed.Host).Wait(ctx)
}

func (h *hostLimiter) limiterFor(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	limiter, ok := h.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(h.interval), 1)
		h.limiters[host] = limiter
	}
	return limiter
}
