// internal/handlers/user/user_handler.go
package user

import (
	"net/http"

	"panel-service/internal/domain/user"
	"panel-service/internal/middleware"
	"panel-service/internal/pkg/response"
	"panel-service/internal/service/account"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	accounts *account.Service
	logger   *zap.Logger
}

func NewUserHandler(accounts *account.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// CreateUser provisions a new account.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req user.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	actor := middleware.MustGetIdentity(c)
	info, err := h.accounts.CreateUser(c.Request.Context(), actor, &req)
	if err != nil {
		response.FromError(c, err, "failed to create user")
		return
	}

	response.Success(c, http.StatusCreated, "user created", info)
}

// DeleteUser removes an account and ends its live session.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor := middleware.MustGetIdentity(c)
	username := c.Param("username")

	if err := h.accounts.DeleteUser(c.Request.Context(), actor, username); err != nil {
		response.FromError(c, err, "failed to delete user")
		return
	}

	response.Success(c, http.StatusOK, "user deleted", nil)
}

// ListUsers returns accounts visible to the caller.
func (h *UserHandler) ListUsers(c *gin.Context) {
	actor := middleware.MustGetIdentity(c)

	users, err := h.accounts.ListUsers(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list users", err)
		return
	}

	response.Success(c, http.StatusOK, "users", users)
}

// GrantService grants a named service to a user.
func (h *UserHandler) GrantService(c *gin.Context) {
	var req user.GrantServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	actor := middleware.MustGetIdentity(c)
	username := c.Param("username")

	if err := h.accounts.GrantService(c.Request.Context(), actor, username, &req); err != nil {
		response.FromError(c, err, "failed to grant service")
		return
	}

	response.Success(c, http.StatusOK, "service granted", nil)
}

// RevokeService removes a named service from a user.
func (h *UserHandler) RevokeService(c *gin.Context) {
	actor := middleware.MustGetIdentity(c)
	username := c.Param("username")
	service := c.Param("service")

	if err := h.accounts.RevokeService(c.Request.Context(), actor, username, service); err != nil {
		response.FromError(c, err, "failed to revoke service")
		return
	}

	response.Success(c, http.StatusOK, "service revoked", nil)
}
