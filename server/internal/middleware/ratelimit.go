package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/devilmonastery/cvbuilder/internal/config"
	"github.com/devilmonastery/cvbuilder/internal/pkg/metrics"
)

// limiterIdleTTL is how long an idle client's bucket is remembered
const limiterIdleTTL = 10 * time.Minute

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *gocache.Cache
	log      *slog.Logger
}

// NewRateLimiter creates a limiter from the server rate limit config. Idle
// buckets expire from the cache on their own.
func NewRateLimiter(cfg config.RateLimitConfig, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		limiters: gocache.New(limiterIdleTTL, time.Minute),
		log:      log,
	}
}

// Middleware rejects requests over the client's budget with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if rl.limiterFor(ip).Allow() {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RateLimited.Inc()
		rl.log.Warn("rate limit exceeded", slog.String("client_ip", ip), slog.String("path", r.URL.Path))

		retryAfter := 1
		if rl.limit > 0 {
			retryAfter = int(math.Ceil(1 / float64(rl.limit)))
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "RateLimitedError",
			"message": "too many requests, retry later",
		})
	})
}

// Count returns the number of tracked clients
func (rl *RateLimiter) Count() int {
	return rl.limiters.ItemCount()
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	if v, ok := rl.limiters.Get(ip); ok {
		lim := v.(*rate.Limiter)
		rl.limiters.SetDefault(ip, lim)
		return lim
	}

	lim := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.limiters.Add(ip, lim, gocache.DefaultExpiration); err != nil {
		// Lost the race to another request from the same client
		if v, ok := rl.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}
