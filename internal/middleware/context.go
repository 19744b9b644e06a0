package middleware

import (
	"github.com/gin-gonic/gin"
)

// IPMiddleware stores the client IP in the context so code holding only a
// context.Context can still attribute audit entries.
func IPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_ip", c.ClientIP())
		c.Next()
	}
}
