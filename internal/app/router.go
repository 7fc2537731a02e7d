// internal/app/router.go
package app

import (
	authHandler "panel-service/internal/handlers/auth"
	bundleHandler "panel-service/internal/handlers/bundle"
	sessionHandler "panel-service/internal/handlers/session"
	userHandler "panel-service/internal/handlers/user"
	wsHandler "panel-service/internal/handlers/websocket"
	"panel-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler    *authHandler.AuthHandler
	SessionHandler *sessionHandler.SessionHandler
	UserHandler    *userHandler.UserHandler
	BundleHandler  *bundleHandler.BundleHandler
	WSHandler      *wsHandler.WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	// ==================== Health Check ====================
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	// Keyed by session_id query param; deliberately unauthenticated so a
	// client whose token just died can still hear the final event.
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	r.POST("/auth", h.AuthHandler.Login)
	r.POST("/validate-session", h.AuthHandler.ValidateSession)
	r.POST("/logout", h.AuthHandler.Logout)

	// ==================== Session Management ====================
	sessions := r.Group("/")
	sessions.Use(h.AuthMiddleware.Auth())
	{
		sessions.GET("/sessions", h.SessionHandler.ListSessions)
		sessions.GET("/session-history", h.SessionHandler.SessionHistory)
	}

	r.POST("/force-logout", append(h.AuthMiddleware.ManagerOnly(), h.SessionHandler.ForceLogout)...)

	// ==================== User Management ====================
	users := r.Group("/users")
	users.Use(h.AuthMiddleware.ManagerOnly()...)
	{
		users.GET("", h.UserHandler.ListUsers)
		users.POST("", h.UserHandler.CreateUser)
		users.DELETE("/:username", h.UserHandler.DeleteUser)
		users.POST("/:username/services", h.UserHandler.GrantService)
		users.DELETE("/:username/services/:service", h.UserHandler.RevokeService)
	}

	// ==================== Credential Bundles ====================
	bundles := r.Group("/sessions")
	bundles.Use(h.AuthMiddleware.Auth())
	{
		bundles.POST("/upload", h.BundleHandler.Upload)
		bundles.GET("/download/:domainFile", h.BundleHandler.Download)
	}

	// ==================== Admin ====================
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}
