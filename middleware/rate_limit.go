package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/codingjojo/community/config"
	"github.com/codingjojo/community/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const visitorIdleTTL = 5 * time.Minute

var (
	visitorsMu sync.Mutex
	visitors   = map[string]*visitor{}
)

// RateLimitMiddleware throttles requests per client IP with a token
// bucket sized from RateLimitPerMinute.
func RateLimitMiddleware() gin.HandlerFunc {
	perMinute := max(config.Get().RateLimitPerMinute, 1)
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	burst := max(perMinute/2, 1)

	return func(ctx *gin.Context) {
		if !limiterFor(ctx.ClientIP(), limit, burst).Allow() {
			utils.Error(ctx, 429, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func limiterFor(ip string, limit rate.Limit, burst int) *rate.Limiter {
	visitorsMu.Lock()
	defer visitorsMu.Unlock()

	now := time.Now()
	for key, v := range visitors {
		if now.Sub(v.lastSeen) > visitorIdleTTL {
			delete(visitors, key)
		}
	}

	v, ok := visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(limit, burst)}
		visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}
