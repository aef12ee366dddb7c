package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafamhanel/web-app-agenda/pkg/logging"
)

// RateLimiter counts requests per key in fixed one-window buckets stored in
// Redis, so every API replica shares the same budget.
type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if client == nil {
		panic("middleware: redis client required")
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  client,
		limit:  int64(limit),
		window: window,
		prefix: "ratelimit",
		now:    time.Now,
	}
}

// Allow increments the counter of key for the current window and reports
// whether it is still within the limit, plus the seconds until reset.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if rl.limit <= 0 {
		return true, 0, nil
	}
	now := rl.now()
	bucket := now.Truncate(rl.window)
	redisKey := fmt.Sprintf("%s:%s:%d", rl.prefix, key, bucket.Unix())

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, fmt.Errorf("middleware: rate limit: %w", err)
	}
	retry := int(bucket.Add(rl.window).Sub(now).Seconds())
	if retry < 1 {
		retry = 1
	}
	return incr.Val() <= rl.limit, retry, nil
}

// RateLimit rejects requests over the per-IP budget with 429. Redis errors
// let the request through.
func RateLimit(rl *RateLimiter, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retry, err := rl.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", "error", err)
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware has already rewritten RemoteAddr from
	// X-Forwarded-For / X-Real-IP when it runs first.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
