package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by Auth
const (
	ContextOwner = "auth.owner"
	ContextRoles = "auth.roles"
)

// TokenResolver maps a bearer token to its owner and roles
type TokenResolver func(ctx context.Context, token string) (owner string, roles []string, ok bool)

// Auth rejects requests without a valid bearer token. Paths in public skip
// the check.
func Auth(resolve TokenResolver, public ...string) gin.HandlerFunc {
	open := make(map[string]struct{}, len(public))
	for _, p := range public {
		open[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := open[c.FullPath()]; ok {
			c.Next()
			return
		}

		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			// Browsers cannot set headers on websocket upgrades
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		owner, roles, ok := resolve(c.Request.Context(), token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextOwner, owner)
		c.Set(ContextRoles, roles)
		c.Next()
	}
}

// RequireRole rejects authenticated callers lacking role. It is a no-op when
// Auth did not run.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, authenticated := c.Get(ContextOwner); !authenticated {
			c.Next()
			return
		}
		for _, r := range c.GetStringSlice(ContextRoles) {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires role " + role})
	}
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
