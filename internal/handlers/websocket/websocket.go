// internal/handlers/websocket/websocket.go
package websocket

import (
	"net/http"
	"time"

	"panel-service/internal/pkg/response"
	ws "panel-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The panel and its desktop agent connect from arbitrary origins.
		return true
	},
}

type WebSocketHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		logger: logger,
	}
}

// HandleConnection upgrades and registers a push channel for a session. The
// session id is the only required parameter; it is not authenticated, so a
// channel can be opened for a session that no longer exists — events for it
// are simply never sent.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "missing session_id", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, sessionID)
	h.hub.Register <- client

	h.logger.Info("websocket client connected",
		zap.String("session_id", sessionID),
		zap.String("ip", c.ClientIP()),
	)

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns push channel statistics (admin only).
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now(),
	}

	response.Success(c, http.StatusOK, "websocket stats", stats)
}
