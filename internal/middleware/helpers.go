// internal/middleware/helpers.go
package middleware

import (
	"panel-service/internal/domain/session"

	"github.com/gin-gonic/gin"
)

// GetUsername gets the authenticated username from context.
func GetUsername(c *gin.Context) (string, bool) {
	username, exists := c.Get("username")
	if !exists {
		return "", false
	}

	str, ok := username.(string)
	return str, ok
}

// GetRole gets the authenticated role from context.
func GetRole(c *gin.Context) (string, bool) {
	role, exists := c.Get("role")
	if !exists {
		return "", false
	}

	str, ok := role.(string)
	return str, ok
}

// GetSessionID gets the session token the request authenticated with.
func GetSessionID(c *gin.Context) (string, bool) {
	sid, exists := c.Get("session_id")
	if !exists {
		return "", false
	}

	str, ok := sid.(string)
	return str, ok
}

// MustGetIdentity returns the authenticated identity or panics. Only valid
// behind Auth().
func MustGetIdentity(c *gin.Context) session.Identity {
	username, ok := GetUsername(c)
	if !ok {
		panic("username not found in context")
	}
	role, ok := GetRole(c)
	if !ok {
		panic("role not found in context")
	}
	return session.Identity{Username: username, Role: role}
}

// IsAdmin checks if the authenticated user is an admin.
func IsAdmin(c *gin.Context) bool {
	role, _ := GetRole(c)
	return role == "admin"
}

// IsReseller checks if the authenticated user is a reseller.
func IsReseller(c *gin.Context) bool {
	role, _ := GetRole(c)
	return role == "reseller"
}
