package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/qaforum/qaforum/utils"
)

const limiterIdle = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimit applies a per client IP token bucket allowing perMinute requests per minute
// with a burst of half of that.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	every := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}

	var (
		mu       sync.Mutex
		limiters = map[string]*rateLimiter{}
	)
	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		for k, l := range limiters {
			if now.After(l.expires) {
				delete(limiters, k)
			}
		}
		l, ok := limiters[key]
		if !ok {
			l = &rateLimiter{limiter: rate.NewLimiter(every, burst)}
			limiters[key] = l
		}
		l.expires = now.Add(limiterIdle)
		return l.limiter
	}

	return func(ctx *gin.Context) {
		if !get(ctx.ClientIP()).Allow() {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
