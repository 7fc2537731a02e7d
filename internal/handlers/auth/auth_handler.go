// internal/handlers/auth/auth_handler.go
package auth

import (
	"net/http"

	"panel-service/internal/domain/session"
	"panel-service/internal/middleware"
	"panel-service/internal/pkg/response"
	"panel-service/internal/registry"
	"panel-service/internal/service/termination"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	registry   *registry.Registry
	terminator *termination.Coordinator
	logger     *zap.Logger
}

func NewAuthHandler(reg *registry.Registry, terminator *termination.Coordinator, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		registry:   reg,
		terminator: terminator,
		logger:     logger,
	}
}

// Login handles user login. A second login while a session is active is
// rejected with 403; the caller must force-logout the existing session first.
func (h *AuthHandler) Login(c *gin.Context) {
	var req session.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	sessionID, err := h.registry.Create(c.Request.Context(), req.Username, req.Secret)
	if err != nil {
		h.logger.Warn("login failed",
			zap.String("username", req.Username),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.FromError(c, err, "login failed")
		return
	}

	identity, err := h.registry.Validate(c.Request.Context(), sessionID)
	if err != nil {
		response.FromError(c, err, "login failed")
		return
	}

	c.JSON(http.StatusOK, session.LoginResponse{
		SessionID: sessionID,
		Role:      identity.Role,
	})
}

// ValidateSession resolves a session token to its identity.
func (h *AuthHandler) ValidateSession(c *gin.Context) {
	var req session.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	identity, err := h.registry.Validate(c.Request.Context(), req.SessionID)
	if err != nil {
		response.FromError(c, err, "session validation failed")
		return
	}

	c.JSON(http.StatusOK, identity)
}

// Logout gracefully ends a session named by either half of the
// {username, sessionId} pair. An unauthenticated caller may end a session it
// can name; the original desktop client logs out this way after its token is
// already invalid.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req session.TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	// A caller that is authenticated but names nothing logs itself out.
	if req.Username == "" && req.SessionID == "" {
		if sid, ok := middleware.GetSessionID(c); ok {
			req.SessionID = sid
		}
	}

	if _, err := h.terminator.Logout(c.Request.Context(), req); err != nil {
		response.FromError(c, err, "logout failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
