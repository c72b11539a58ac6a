package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether key may make another request in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
type RedisLimiter struct {
	Client *redis.Client
	Limit  int
	Window time.Duration
	Prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Limit: limit, Window: window, Prefix: "ratelimit"}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	bucket := time.Now().UnixNano() / int64(l.Window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.Prefix, key, bucket)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.Limit), nil
}

// MemoryLimiter is the single-process fallback used when Redis is not configured.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok || now.Sub(v.lastReset) > l.window {
		l.visitors[key] = &visitor{count: 1, lastReset: now}
		return true, nil
	}

	v.count++
	return v.count <= l.limit, nil
}

// Cleanup drops idle visitors every interval until ctx is done.
func (l *MemoryLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, v := range l.visitors {
				if now.Sub(v.lastReset) > l.window*2 {
					delete(l.visitors, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RateLimit rejects requests over the limit with 429. Limiter errors let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routePattern(r)
			allowed, err := limiter.Allow(r.Context(), route+"|"+ClientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				allowed = true
			}
			if !allowed {
				RecordRateLimited(route)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the host of the peer address. Forwarding headers are only honoured when
// the router rewrites RemoteAddr from them behind a trusted proxy.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
