// internal/websocket/hub.go
package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"panel-service/internal/domain/session"
	wstypes "panel-service/internal/domain/websocket"
)

// UsernameResolver labels connections with a username for logging. Absence
// of a session is not an error; the channel just stays unlabeled.
type UsernameResolver interface {
	GetBySessionID(ctx context.Context, sessionID string) (*session.ActiveSession, error)
}

// Hub maps each session id to at most one live push connection. A reconnect
// for the same session id replaces the previous connection
// (last-connect-wins). Delivery is fire-and-forget: an unreachable or
// absent client never blocks the sender.
type Hub struct {
	// Registered clients by session id
	clients map[string]*Client
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Outbound delivery queue
	outbound chan *outboundMessage

	resolver UsernameResolver
}

type outboundMessage struct {
	sessionID string
	message   *wstypes.WSMessage
}

func NewHub(resolver UsernameResolver) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan *outboundMessage, 256),
		resolver:   resolver,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()

	if old, ok := h.clients[client.sessionID]; ok {
		old.Close()
	}
	h.clients[client.sessionID] = client

	// Best-effort username label for the connection.
	if sess, err := h.resolver.GetBySessionID(context.Background(), client.sessionID); err == nil {
		client.username = sess.Username
	}
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Channel connected: session=%s, username=%s, total=%d",
		client.sessionID, client.username, total)

	// Acknowledge before any other traffic.
	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]interface{}{
		"session_id":   client.sessionID,
		"connected_at": time.Now(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A reconnect may already have replaced this client; only drop the
	// mapping if it still points here.
	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
		log.Printf("Channel disconnected: session=%s, username=%s, total=%d",
			client.sessionID, client.username, len(h.clients))
	}
	client.Close()
}

func (h *Hub) deliver(msg *outboundMessage) {
	h.mu.RLock()
	client, ok := h.clients[msg.sessionID]
	h.mu.RUnlock()

	if !ok {
		log.Printf("No channel for session=%s, dropping %s event", msg.sessionID, msg.message.Type)
		return
	}
	client.SendMessage(msg.message)
}

// Send queues an event for a session's channel. Never blocks; if the queue
// is saturated the event is dropped and logged.
func (h *Hub) Send(sessionID string, msg *wstypes.WSMessage) {
	select {
	case h.outbound <- &outboundMessage{sessionID: sessionID, message: msg}:
	default:
		log.Printf("Outbound queue full, dropping %s event for session=%s", msg.Type, sessionID)
	}
}

// Has reports whether a live channel exists for the session.
func (h *Hub) Has(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[sessionID]
	return ok
}

// CloseAfter tears down the session's channel once the grace delay has
// elapsed, giving queued events a chance to flush first.
func (h *Hub) CloseAfter(sessionID string, grace time.Duration) {
	time.AfterFunc(grace, func() {
		h.CloseSession(sessionID)
	})
}

// CloseSession closes and removes the channel for a session. Safe to call
// when none exists.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[sessionID]; ok {
		delete(h.clients, sessionID)
		client.Close()
	}
}

// TotalClients returns the number of live channels.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.Close()
	}
	h.clients = make(map[string]*Client)
}
