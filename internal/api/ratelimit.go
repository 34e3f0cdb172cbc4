package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request under key fits in the window
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// RateLimiter is a fixed-window limiter kept in process memory
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter creates an in-process limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*rateBucket)}
}

// Allow counts one request for key
func (r *RateLimiter) Allow(key string, limit int, window time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	bucket, ok := r.buckets[key]
	if !ok || now.After(bucket.windowEnd) {
		r.buckets[key] = &rateBucket{count: 1, windowEnd: now.Add(window)}
		if len(r.buckets) > 10000 {
			r.evict(now)
		}
		return true
	}
	if bucket.count >= limit {
		return false
	}
	bucket.count++
	return true
}

// evict drops expired buckets; caller holds mu
func (r *RateLimiter) evict(now time.Time) {
	for key, b := range r.buckets {
		if now.After(b.windowEnd) {
			delete(r.buckets, key)
		}
	}
}

const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// RedisLimiter shares fixed windows across instances. It fails open.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisLimiter returns nil for a nil client
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
	}
}

// Allow counts one request for key in Redis
func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}

	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	allowed, err := l.script.Run(ctx, l.client, []string{key}, ttl, limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}

// RateLimit rejects requests over limit per key with 429
func RateLimit(limiter Limiter, keyFn func(*http.Request) string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" || limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(key, limit, window) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				respondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host of r.RemoteAddr. Proxy headers are honoured only
// through middleware.RealIP, which rewrites RemoteAddr before this runs.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
