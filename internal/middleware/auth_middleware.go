// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"panel-service/internal/pkg/response"
	"panel-service/internal/registry"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	registry *registry.Registry
}

func NewAuthMiddleware(reg *registry.Registry) *AuthMiddleware {
	return &AuthMiddleware{
		registry: reg,
	}
}

// Auth validates the session token carried by the request and stores the
// resolved identity in the gin context. Tokens are opaque; every request is
// checked against the live registry, so a terminated session fails
// immediately rather than at some future expiry.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing session token", nil)
			return
		}

		identity, err := m.registry.Validate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired session", err)
			return
		}

		c.Set("username", identity.Username)
		c.Set("role", identity.Role)
		c.Set("session_id", token)

		c.Next()
	}
}

// RequireRole requires the authenticated user to have one of the given roles.
// MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusForbidden, "no role found - authentication required", nil)
			return
		}

		roleStr, ok := userRole.(string)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "invalid role format", nil)
			return
		}

		for _, required := range roles {
			if roleStr == required {
				c.Next()
				return
			}
		}

		err := errors.New("user does not have required role")
		response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
			"required_roles": roles,
			"user_role":      roleStr,
		})
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole).
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("admin"),
	}
}

// ManagerOnly returns middlewares for routes open to admins and resellers.
func (m *AuthMiddleware) ManagerOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole("admin", "reseller"),
	}
}

// extractToken pulls the session token from the Authorization header, the
// X-Session-Id header, or the session_id query parameter, in that order.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if token := c.GetHeader("X-Session-Id"); token != "" {
		return token
	}

	return c.Query("session_id")
}
