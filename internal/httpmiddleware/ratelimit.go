package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"faceattend/internal/metrics"
)

// idleAfter is how long an untouched client bucket is kept before it is swept.
const idleAfter = 10 * time.Minute

// Limiter is an in-memory per-client token bucket.
type Limiter struct {
	name      string
	burst     float64
	perSecond float64

	mu        sync.Mutex
	clients   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter allows perMinute requests per client with bursts up to burst.
// A non-positive perMinute disables limiting.
func NewLimiter(name string, perMinute, burst int) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &Limiter{
		name:      name,
		burst:     float64(burst),
		perSecond: float64(perMinute) / 60,
		clients:   make(map[string]*bucket),
		now:       time.Now,
	}
}

// GinMiddleware rejects clients that exhausted their bucket with 429.
func (l *Limiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSecond <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if wait, ok := l.take(ip); !ok {
			metrics.RateLimited.WithLabelValues(l.name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// take consumes one token for key, or reports how long until one is available.
func (l *Limiter) take(key string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.clients[key]
	if !ok {
		b = &bucket{tokens: l.burst, last: now}
		l.clients[key] = b
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.last).Seconds()*l.perSecond)
	b.last = now
	if b.tokens < 1 {
		return time.Duration((1 - b.tokens) / l.perSecond * float64(time.Second)), false
	}
	b.tokens--
	return 0, true
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	for k, b := range l.clients {
		if now.Sub(b.last) >= idleAfter {
			delete(l.clients, k)
		}
	}
	l.lastSweep = now
}
