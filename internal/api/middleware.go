package api

import (
	"strconv"
	"time"

	"storefront/internal/auth"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// authRequired resolves the caller's identity via the configured provider and
// aborts unauthenticated requests.
func authRequired(provider auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := provider.Authenticate(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(401, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// adminRequired allows only admin identities through. Must run after
// authRequired.
func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(403, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) auth.Identity {
	identity, _ := c.Get(identityKey)
	id, _ := identity.(auth.Identity)
	return id
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
