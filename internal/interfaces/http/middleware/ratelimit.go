package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/DiscourseLens/pkg/errors"
	"github.com/turtacn/DiscourseLens/pkg/types/common"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client key.
	RequestsPerSecond float64
	// BurstSize is the number of requests allowed above the sustained rate.
	BurstSize int
	// KeyFunc extracts the client key.  Defaults to the client IP.
	KeyFunc func(c *gin.Context) string
	// IdleTTL drops limiters of clients not seen for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns 10 rps with a burst of 20 per client IP.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		IdleTTL:           5 * time.Minute,
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientLimiter keeps one token bucket per client key.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

// NewClientLimiter creates a limiter map.  A non-positive rate disables
// limiting.
func NewClientLimiter(rps float64, burst int, idleTTL time.Duration) *ClientLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &ClientLimiter{
		limit:    limit,
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Reserve takes a token for key.  When no token is available it returns
// false and the wait until the next one.
func (l *ClientLimiter) Reserve(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.gc(now)
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// gc runs at most once per idle TTL; callers hold mu.
func (l *ClientLimiter) gc(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastGC) < l.idleTTL {
		return
	}
	l.lastGC = now
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, k)
		}
	}
}

// Clients returns the number of tracked client keys.
func (l *ClientLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimit rejects clients above their rate with 429 and a Retry-After
// header.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return rateLimit(NewClientLimiter(cfg.RequestsPerSecond, cfg.BurstSize, cfg.IdleTTL), cfg)
}

func rateLimit(l *ClientLimiter, cfg RateLimitConfig) gin.HandlerFunc {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return func(c *gin.Context) {
		allowed, wait := l.Reserve(keyFunc(c))
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if allowed {
			c.Next()
			return
		}

		secs := int(wait.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		resp := common.NewErrorResponse(string(errors.ErrCodeRateLimited), "rate limit exceeded, please retry later")
		resp.RequestID = GetRequestID(c)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
	}
}
