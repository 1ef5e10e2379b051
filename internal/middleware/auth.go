package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cmsconsultores/cmsweb/internal/auth"
	"github.com/cmsconsultores/cmsweb/internal/authz"
	"github.com/cmsconsultores/cmsweb/pkg/logger"
)

const claimsContextName = "claims"

// TokenAuthMiddleware validates an "Authorization: Bearer <jwt>" header and
// sets the claims in the Gin context.
func TokenAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		claims, err := auth.ValidateToken(token, secret)
		if err != nil {
			logger.FromContext(c.Request.Context(), nil).Debug("rejected bearer token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(claimsContextName, claims)
		c.Next()
	}
}

// RequirePermission aborts with 403 unless the token's role may perform
// action on resource. It must run after TokenAuthMiddleware.
func RequirePermission(enforcer *authz.Enforcer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		allowed, err := enforcer.Enforce(claims.Role, resource, action)
		if err != nil {
			logger.FromContext(c.Request.Context(), nil).Error("authorization check failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// GetClaimsFromContext retrieves the token claims from the Gin context.
func GetClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	val, ok := c.Get(claimsContextName)
	if !ok {
		return nil, false
	}
	claims, ok := val.(*auth.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
