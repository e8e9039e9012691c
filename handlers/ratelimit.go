package handlers

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rateLimitWindow = 15 * time.Minute
	rateLimitMax    = 300
)

// RateLimiter enforces a sliding-window request limit per client IP, backed
// by redis so the window survives restarts and is shared across replicas.
type RateLimiter struct {
	client    *redis.Client
	keyPrefix string
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{
		client:    client,
		keyPrefix: "ratelimit:",
	}
}

// Sliding window over a sorted set. The INCR counter makes each member
// unique so two requests in the same millisecond both count.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return 1
	end
	return 0
`)

func (l *RateLimiter) allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		now.UnixMilli(),
		now.Add(-rateLimitWindow).UnixMilli(),
		rateLimitMax,
		rateLimitWindow.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis script: %w", err)
	}
	return res == 1, nil
}

// Middleware rejects clients over the limit with a 429. If redis is
// unreachable the request passes through so the API stays available.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := l.allow(r.Context(), clientIP(r))
		if err != nil {
			log.Printf("Rate limiter unavailable: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			respondError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
