package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-authcore/authcore/internal/token"

	"github.com/gin-gonic/gin"
)

// BearerTokenMiddleware guards an endpoint with a static bearer token,
// compared in constant time. An empty configured token leaves the endpoint
// open; realm names the protected surface in the challenge.
func BearerTokenMiddleware(configured, realm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configured == "" {
			c.Next()
			return
		}

		presented := token.StripBearer(c.GetHeader("Authorization"))
		if presented == "" {
			challenge(c, realm, "Bearer token required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
			challenge(c, realm, "Invalid token")
			return
		}

		c.Next()
	}
}

// MetricsAuthMiddleware protects the Prometheus endpoint.
func MetricsAuthMiddleware(configured string) gin.HandlerFunc {
	return BearerTokenMiddleware(configured, "Metrics")
}

// AdminAuthMiddleware protects the client management API. Unlike the
// metrics endpoint, an unset token closes the surface entirely.
func AdminAuthMiddleware(configured string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configured == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		BearerTokenMiddleware(configured, "Admin")(c)
	}
}

func challenge(c *gin.Context, realm, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="`+realm+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
