package middleware

import (
	"Chatline/internal/pkg/ratelimit"
	"Chatline/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware 按客户端 IP 限流，超出返回 429
func RateLimitMiddleware(store *ratelimit.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.Allow(c.ClientIP()) {
			response.Fail(c, response.TooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
