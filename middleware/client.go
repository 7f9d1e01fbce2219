package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
)

// ClientInfo attaches the caller's IP and User-Agent to the request context
// so engine audit events carry them.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := passport.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = passport.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
