package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cyw0ng95/txproxy/pkg/ratelimit"
)

// RateLimit wraps pkg/ratelimit's per-client token bucket as an optional
// extra layer ahead of auth, gated on a non-zero requests-per-second
// configuration. Modeled on cmd/v2access/middleware.go's rate limiter shape.
func RateLimit(requestsPerSecond int) gin.HandlerFunc {
	refill := time.Second
	if requestsPerSecond > 0 {
		refill = time.Second / time.Duration(requestsPerSecond)
	}
	limiter := ratelimit.NewClientLimiter(requestsPerSecond, refill)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(429, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
