// internal/handlers/session/session_handler.go
package session

import (
	"net/http"
	"strings"

	"panel-service/internal/domain/session"
	"panel-service/internal/domain/user"
	"panel-service/internal/ledger"
	"panel-service/internal/middleware"
	"panel-service/internal/pkg/response"
	"panel-service/internal/registry"
	"panel-service/internal/service/termination"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreatorLookup answers who provisioned a given account, for reseller
// scoping of force-logout.
type CreatorLookup interface {
	Get(username string) (*user.User, error)
}

type SessionHandler struct {
	registry   *registry.Registry
	ledger     *ledger.Ledger
	terminator *termination.Coordinator
	users      CreatorLookup
	logger     *zap.Logger
}

func NewSessionHandler(reg *registry.Registry, led *ledger.Ledger, terminator *termination.Coordinator, users CreatorLookup, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry:   reg,
		ledger:     led,
		terminator: terminator,
		users:      users,
		logger:     logger,
	}
}

// ListSessions returns all active sessions keyed by username.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.registry.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list sessions", err)
		return
	}

	out := make(map[string]session.View, len(sessions))
	for _, s := range sessions {
		out[s.Username] = session.View{
			SessionID: s.SessionID,
			Role:      s.Role,
			LoginTime: s.LoginAt,
		}
	}

	c.JSON(http.StatusOK, out)
}

// SessionHistory returns the ledger with live, derived statuses. An optional
// ?status= query holds a comma-separated list of statuses to filter by.
func (h *SessionHandler) SessionHistory(c *gin.Context) {
	var views []session.HistoryView
	var err error

	if raw := c.Query("status"); raw != "" {
		var statuses []session.Status
		for _, part := range strings.Split(raw, ",") {
			st, ok := session.ParseStatus(strings.TrimSpace(part))
			if !ok {
				response.Error(c, http.StatusBadRequest, "unknown status: "+part, nil)
				return
			}
			statuses = append(statuses, st)
		}
		views, err = h.ledger.HistoryByStatuses(c.Request.Context(), statuses)
	} else {
		views, err = h.ledger.History(c.Request.Context())
	}
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load session history", err)
		return
	}

	c.JSON(http.StatusOK, views)
}

// ForceLogout terminates another user's session. Admins may terminate
// anyone; resellers only users they created. Repeating the call for a
// session that is already gone returns 404 and changes nothing.
func (h *SessionHandler) ForceLogout(c *gin.Context) {
	var req session.TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	actor := middleware.MustGetIdentity(c)

	if actor.Role == "reseller" {
		target, err := h.registry.Resolve(c.Request.Context(), req.Username, req.SessionID)
		if err != nil {
			response.FromError(c, err, "force logout failed")
			return
		}
		u, err := h.users.Get(target.Username)
		if err != nil || u.CreatedBy != actor.Username {
			response.Forbidden(c, "cannot terminate a session of a user you do not manage")
			return
		}
	}

	username, err := h.terminator.Terminate(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, err, "force logout failed")
		return
	}

	h.logger.Info("force logout",
		zap.String("actor", actor.Username),
		zap.String("target", username),
	)

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Session terminated for " + username,
	})
}
