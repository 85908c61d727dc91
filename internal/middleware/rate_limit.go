// internal/middleware/rate_limit.go
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/utils"
)

const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 20
	defaultUploadsPerMinute  = 10

	bucketIdleTTL = 3 * time.Minute
	sweepInterval = time.Minute
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// CallerKey charges signed-in callers by identity and anonymous callers by
// IP.
func CallerKey(c *gin.Context) string {
	if authID, ok := utils.GetAuthIDFromContext(c); ok {
		return "auth:" + authID
	}
	return ClientIPKey(c)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	key       KeyFunc
	lastSweep time.Time
}

func NewRateLimiter(limit rate.Limit, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIPKey
	}
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		burst:     burst,
		key:       key,
		lastSweep: time.Now(),
	}
}

// allow takes one token from key's bucket. When the bucket is empty it
// reports how long until a token frees up.
func (rl *RateLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweepLocked(now)
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, sweepInterval
	}
	if wait := reservation.DelayFrom(now); wait > 0 {
		reservation.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Sweep drops buckets idle for longer than the TTL and returns how many
// remain.
func (rl *RateLimiter) Sweep(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepLocked(now)
	return len(rl.buckets)
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > bucketIdleTTL {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := rl.allow(rl.key(c), time.Now())
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(wait.Seconds())))))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", "Rate limit exceeded. Please try again later.", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// GeneralRateLimit limits every request per client IP.
func GeneralRateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return NewRateLimiter(rate.Limit(rps), burst, ClientIPKey).Middleware()
}

// UploadRateLimit limits file uploads per caller. It must run after the
// auth middleware to key by identity.
func UploadRateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	perMinute := cfg.UploadsPerMinute
	if perMinute <= 0 {
		perMinute = defaultUploadsPerMinute
	}
	return NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute, CallerKey).Middleware()
}
