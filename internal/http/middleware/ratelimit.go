package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit keeps one token bucket per client IP. A bucket is dropped ten
// minutes after it was created.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	limiters := cache.New(10*time.Minute, 20*time.Minute)

	return func(c *gin.Context) {
		key := c.ClientIP()
		limiter := rate.NewLimiter(rate.Limit(rps), burst)
		if err := limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
			if cached, ok := limiters.Get(key); ok {
				limiter = cached.(*rate.Limiter)
			}
		}

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
