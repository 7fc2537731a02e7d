// internal/service/termination/terminator.go
package termination

import (
	"context"
	"time"

	"panel-service/internal/domain/session"
	wstypes "panel-service/internal/domain/websocket"
	"panel-service/internal/ledger"
	xerrors "panel-service/internal/pkg/errors"
	"panel-service/internal/registry"

	"go.uber.org/zap"
)

// Notifier is the push side of a termination: deliver an event to a
// session's channel and tear the channel down after a grace delay. Tests
// substitute a recorder; production wires the websocket hub.
type Notifier interface {
	Send(sessionID string, msg *wstypes.WSMessage)
	Has(sessionID string) bool
	CloseAfter(sessionID string, grace time.Duration)
}

// Coordinator ends sessions on behalf of operators: resolve the target,
// remove it from the registry, transition the ledger, and push the logout
// event to the live channel if one exists.
type Coordinator struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	notifier Notifier
	grace    time.Duration
	logger   *zap.Logger
}

func NewCoordinator(reg *registry.Registry, led *ledger.Ledger, notifier Notifier, grace time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		registry: reg,
		ledger:   led,
		notifier: notifier,
		grace:    grace,
		logger:   logger,
	}
}

// Terminate force-ends a session identified by either half of the
// {username, sessionId} pair. Idempotent: a session that is already gone
// returns ErrNotFound without touching registry or ledger, so impatient
// admin UIs can retry freely. Returns the resolved username on success.
func (c *Coordinator) Terminate(ctx context.Context, req session.TerminateRequest) (string, error) {
	sess, err := c.registry.Resolve(ctx, req.Username, req.SessionID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrSessionNotFound) {
			return "", xerrors.ErrNotFound
		}
		return "", err
	}

	return c.end(ctx, sess, session.StatusTerminated, wstypes.EventTypeForceLogout,
		"Your session was terminated by an administrator")
}

// Logout gracefully ends a session. Same resolution rules as Terminate; the
// ledger transition is ended rather than terminated and the channel receives
// a user_logout event.
func (c *Coordinator) Logout(ctx context.Context, req session.TerminateRequest) (string, error) {
	sess, err := c.registry.Resolve(ctx, req.Username, req.SessionID)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrSessionNotFound) {
			return "", xerrors.ErrNotFound
		}
		return "", err
	}

	return c.end(ctx, sess, session.StatusEnded, wstypes.EventTypeUserLogout, "Logged out")
}

func (c *Coordinator) end(ctx context.Context, sess *session.ActiveSession, status session.Status, event wstypes.EventType, reason string) (string, error) {
	snapshot, err := c.registry.Remove(ctx, sess.Username)
	if err != nil {
		// Lost a race with another terminator; the session is gone, which
		// is what the caller wanted.
		if xerrors.Is(err, xerrors.ErrSessionNotFound) {
			return "", xerrors.ErrNotFound
		}
		return "", err
	}

	now := time.Now()
	if err := c.ledger.CloseOpen(ctx, snapshot.SessionID, status, now); err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			// Ledger drift: no open entry for a session that verifiably
			// existed. Record the event instead of losing it.
			if err := c.ledger.AppendClosed(ctx, snapshot, status, now); err != nil {
				c.logger.Error("failed to reconstruct history entry",
					zap.String("session_id", snapshot.SessionID),
					zap.Error(err),
				)
			}
		} else {
			c.logger.Error("failed to close history entry",
				zap.String("session_id", snapshot.SessionID),
				zap.Error(err),
			)
		}
	}

	if c.notifier.Has(snapshot.SessionID) {
		c.notifier.Send(snapshot.SessionID, wstypes.NewMessage(event, wstypes.SessionEventData{
			SessionID: snapshot.SessionID,
			Reason:    reason,
			Message:   "You have been logged out",
		}))
		c.notifier.CloseAfter(snapshot.SessionID, c.grace)
	} else {
		c.logger.Info("no live channel for ended session; client will discover on next request",
			zap.String("session_id", snapshot.SessionID),
			zap.String("username", snapshot.Username),
		)
	}

	c.logger.Info("session ended",
		zap.String("username", snapshot.Username),
		zap.String("session_id", snapshot.SessionID),
		zap.String("status", string(status)),
	)

	return snapshot.Username, nil
}
