// internal/bridge/connector.go
package bridge

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	wstypes "panel-service/internal/domain/websocket"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Fixed reconnect delay, unbounded retries. No backoff growth: the agent
// must come back as soon as the server does, and the connection is idle
// enough that hammering is not a concern.
const reconnectDelay = 5 * time.Second

// EventHandler receives server-pushed events. ForceLogout is terminal for
// the identity: the handler clears local credentials and the connector stops
// reconnecting.
type EventHandler interface {
	OnConnected()
	OnForceLogout(reason string)
	OnUserLogout()
	OnServiceUpdated(data wstypes.ServiceEventData)
}

// Connector maintains the push channel from the desktop agent to the panel
// server, reconnecting forever until the context is cancelled or the session
// is force-ended.
type Connector struct {
	serverURL string
	sessionID string
	handler   EventHandler
	logger    *zap.Logger
}

func NewConnector(serverURL, sessionID string, handler EventHandler, logger *zap.Logger) *Connector {
	return &Connector{
		serverURL: serverURL,
		sessionID: sessionID,
		handler:   handler,
		logger:    logger,
	}
}

// Run connects and listens until ctx is cancelled or a force_logout arrives.
// Every disconnect, for any reason, is followed by a reconnect attempt after
// the fixed delay.
func (c *Connector) Run(ctx context.Context) {
	for {
		loggedOut := c.listen(ctx)
		if loggedOut {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// listen runs one connection to exhaustion. Returns true when the session
// was ended server-side and reconnecting would be pointless.
func (c *Connector) listen(ctx context.Context) bool {
	endpoint, err := c.endpoint()
	if err != nil {
		c.logger.Error("invalid server url", zap.Error(err))
		return true
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.logger.Warn("connection failed, will retry",
			zap.String("url", endpoint),
			zap.Error(err),
		)
		return false
	}
	defer conn.Close()

	// Drop the read on context cancellation.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			c.logger.Warn("connection lost, will retry", zap.Error(err))
			return false
		}

		msg, err := wstypes.ParseMessage(data)
		if err != nil {
			c.logger.Warn("unparseable event", zap.Error(err))
			continue
		}

		if c.dispatch(conn, msg) {
			return true
		}
	}
}

// dispatch handles one event. Returns true for terminal events.
func (c *Connector) dispatch(conn *websocket.Conn, msg *wstypes.WSMessage) bool {
	switch msg.Type {
	case wstypes.EventTypeConnected:
		c.logger.Info("push channel established", zap.String("session_id", c.sessionID))
		c.handler.OnConnected()

	case wstypes.EventTypePing:
		reply, err := wstypes.NewMessage(wstypes.EventTypePong, nil).ToJSON()
		if err == nil {
			conn.WriteMessage(websocket.TextMessage, reply)
		}

	case wstypes.EventTypeForceLogout:
		var data wstypes.SessionEventData
		decodeEventData(msg.Data, &data)
		c.logger.Info("force logout received", zap.String("reason", data.Reason))
		c.handler.OnForceLogout(data.Reason)
		return true

	case wstypes.EventTypeUserLogout:
		c.logger.Info("logout acknowledged by server")
		c.handler.OnUserLogout()
		return true

	case wstypes.EventTypeServiceUpdated:
		var data wstypes.ServiceEventData
		decodeEventData(msg.Data, &data)
		c.handler.OnServiceUpdated(data)
	}

	return false
}

func (c *Connector) endpoint() (string, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("session_id", c.sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeEventData re-marshals the generic event payload into a typed struct.
func decodeEventData(data interface{}, out interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	json.Unmarshal(raw, out)
}
