package service

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterRegistry keeps one token-bucket limiter per API key. Limiters
// are created lazily on first use; the per-second rate doubles as the
// burst size.
type RateLimiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiterRegistry creates an empty registry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{limiters: make(map[string]*rate.Limiter)}
}

// GetOrCreate returns the limiter for keyID, creating it at rateLimit
// requests per second on first use.
func (r *RateLimiterRegistry) GetOrCreate(keyID string, rateLimit int) *rate.Limiter {
	r.mu.RLock()
	limiter, ok := r.limiters[keyID]
	r.mu.RUnlock()
	if ok {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok := r.limiters[keyID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(rateLimit), rateLimit)
	r.limiters[keyID] = limiter
	return limiter
}

// Delete drops the limiter for keyID, resetting its budget on next use.
func (r *RateLimiterRegistry) Delete(keyID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.limiters, keyID)
}

// Clear drops every limiter.
func (r *RateLimiterRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters = make(map[string]*rate.Limiter)
}
