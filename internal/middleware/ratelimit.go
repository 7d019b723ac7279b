package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codearena/codearena-backend/internal/response"
)

// RateLimiter is a per-IP token bucket. It fronts login and contest
// join so entry codes and passwords cannot be brute-forced from a
// single address.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	interval time.Duration
}

type bucket struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter allows capacity requests per interval per IP.
func NewRateLimiter(capacity int, interval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		interval: interval,
	}
	go rl.evictLoop()
	return rl
}

// Middleware enforces the limit, answering 429 when the bucket is dry.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		b, ok := rl.buckets[ip]
		if !ok {
			b = &bucket{tokens: rl.capacity, lastSeen: time.Now()}
			rl.buckets[ip] = b
		}

		// Whole intervals elapsed since the last visit refill the bucket.
		if intervals := int(time.Since(b.lastSeen) / rl.interval); intervals > 0 {
			b.tokens += intervals * rl.capacity
			if b.tokens > rl.capacity {
				b.tokens = rl.capacity
			}
			b.lastSeen = time.Now()
		}

		if b.tokens <= 0 {
			rl.mu.Unlock()
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		b.tokens--
		rl.mu.Unlock()

		c.Next()
	}
}

// evictLoop drops buckets for addresses that went quiet so the map
// does not grow with every IP ever seen.
func (rl *RateLimiter) evictLoop() {
	for range time.Tick(time.Minute) {
		rl.mu.Lock()
		for ip, b := range rl.buckets {
			if time.Since(b.lastSeen) > 3*time.Minute {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}
