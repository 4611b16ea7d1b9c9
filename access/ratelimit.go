package access

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// apiLimiter holds one token bucket per tensor, sized to the tensor's
// hourly RateLimit. A bucket is rebuilt when the limit changes.
type apiLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter *rate.Limiter
	perHour int
}

func newAPILimiter() *apiLimiter {
	return &apiLimiter{buckets: make(map[string]*bucket)}
}

func (l *apiLimiter) allow(tensorID string, perHour int) bool {
	if perHour <= 0 {
		return false
	}

	l.mu.Lock()
	b, ok := l.buckets[tensorID]
	if !ok || b.perHour != perHour {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), perHour),
			perHour: perHour,
		}
		l.buckets[tensorID] = b
	}
	l.mu.Unlock()

	return b.limiter.Allow()
}

func (l *apiLimiter) forget(tensorID string) {
	l.mu.Lock()
	delete(l.buckets, tensorID)
	l.mu.Unlock()
}
