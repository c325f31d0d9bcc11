package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/ratelimit"
)

// =============================================================================
// REQUEST ID MIDDLEWARE
// =============================================================================

// RequestIDMiddleware tags every request with an X-Request-Id, generating
// one if the caller didn't supply it. Handlers and logs can read it back
// via c.GetString("request_id").
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

// APIKeyAuthMiddleware returns middleware that checks for a valid API key.
// Health endpoint is exempt. No-op if apiKey is empty.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		if c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == apiKey {
				c.Next()
				return
			}
		}

		if c.GetHeader("X-API-Key") == apiKey {
			c.Next()
			return
		}

		ErrorResponse(c, http.StatusUnauthorized, "invalid or missing API key")
		c.Abort()
	}
}

// =============================================================================
// RATE LIMIT MIDDLEWARE
// =============================================================================

// routeCategory maps an admin API path to a rate limiter route name.
// Requests mutating partition state (force-creating one ahead of traffic)
// are categorized separately from cheap read-only inspection calls.
func routeCategory(path, method string) string {
	switch {
	case method == "POST" && strings.Contains(path, "/partitions"):
		return "ensure_partition"
	case strings.Contains(path, "/tables"):
		return "inspect"
	default:
		return ""
	}
}

// RateLimitMiddleware returns middleware that rate-limits requests using the provided limiter
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		route := routeCategory(c.Request.URL.Path, c.Request.Method)
		if route == "" {
			route = "default"
		}

		result := limiter.Allow(route)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			ErrorResponse(c, http.StatusTooManyRequests, fmt.Sprintf("rate limit exceeded for %s, retry after %d seconds", result.LimitType, retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// =============================================================================
// BODY SIZE MIDDLEWARE
// =============================================================================

const (
	// DefaultBodyLimit caps request bodies on the admin API; the largest
	// body this surface accepts is an ensurePartitionRequest.
	DefaultBodyLimit = 64 * 1024
)

// MaxBodySizeMiddleware returns middleware that limits request body size
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			ErrorResponse(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
