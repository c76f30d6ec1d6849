package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/fanline/pkg/response"
)

// RateLimit applies a per-caller token bucket keyed by authenticated user id,
// falling back to client IP for unauthenticated routes. Limiters are kept for
// the process lifetime; the key space is bounded by the active user base.
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rps, burst)
			limiters[key] = l
		}
		return l
	}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if ident := IdentityFrom(c); ident != nil {
			key = ident.UserID
		}
		if !limiterFor(key).Allow() {
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}
