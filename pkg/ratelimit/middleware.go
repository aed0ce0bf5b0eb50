package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"ridehub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware applies rate limiting to all routes, choosing the bucket from
// the request path. Hold/confirm traffic gets the tighter booking bucket.
func Middleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limitType := classify(c.Request.Method, c.Request.URL.Path)

		result, err := limiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			logger.GetDefault().DebugWithContext(c.Request.Context(),
				"rate limiter check failed, allowing request",
				map[string]interface{}{"error": err.Error()})
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			logger.GetDefault().LogRateLimitExceeded(c.Request.Context(), clientIP, c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"status_code": http.StatusTooManyRequests,
				"message":     "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

func classify(method, path string) RateLimitType {
	switch {
	case path == "/health" || path == "/ping" || path == "/status":
		return RateLimitTypeHealth
	case strings.Contains(path, "/locks") && method != http.MethodGet:
		return RateLimitTypeBooking
	case method == http.MethodGet:
		return RateLimitTypePublic
	default:
		return RateLimitTypeDefault
	}
}
