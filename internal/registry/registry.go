// internal/registry/registry.go
package registry

import (
	"context"
	"time"

	"panel-service/internal/domain/session"
	"panel-service/internal/domain/user"
	xerrors "panel-service/internal/pkg/errors"
	"panel-service/internal/pkg/token"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the credential lookup the registry authenticates against.
type UserStore interface {
	Get(username string) (*user.User, error)
}

// ActiveStore persists ActiveSession records.
type ActiveStore interface {
	Put(ctx context.Context, sess *session.ActiveSession) error
	GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error)
	GetBySessionID(ctx context.Context, sessionID string) (*session.ActiveSession, error)
	Delete(ctx context.Context, username string) error
	Touch(ctx context.Context, username string, at time.Time) error
	List(ctx context.Context) ([]*session.ActiveSession, error)
}

// HistoryRecorder receives the open ledger entry written at login and closes
// any stale entry the new login supersedes. All other ledger writes go
// through the ledger itself.
type HistoryRecorder interface {
	Append(ctx context.Context, entry *session.HistoryEntry) error
	OpenByUsername(ctx context.Context, username string) (*session.HistoryEntry, error)
	Close(ctx context.Context, sessionID string, status session.Status, at time.Time) error
}

// Registry enforces the single-active-session-per-user policy. Mutating
// operations are serialized per username so two concurrent logins (or a
// login racing a termination) cannot both observe an empty slot.
type Registry struct {
	users   UserStore
	store   ActiveStore
	history HistoryRecorder
	logger  *zap.Logger
	locks   *usernameLocks
}

func New(users UserStore, store ActiveStore, history HistoryRecorder, logger *zap.Logger) *Registry {
	return &Registry{
		users:   users,
		store:   store,
		history: history,
		logger:  logger,
		locks:   newUsernameLocks(),
	}
}

// Create authenticates the credentials and opens a new session. A second
// login while one is active fails with ErrSessionAlreadyActive and leaves
// the existing session untouched; the caller must terminate it elsewhere
// before retrying.
func (r *Registry) Create(ctx context.Context, username, secret string) (string, error) {
	unlock := r.locks.lock(username)
	defer unlock()

	u, err := r.users.Get(username)
	if err != nil {
		return "", xerrors.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.SecretHash), []byte(secret)) != nil {
		return "", xerrors.ErrInvalidCredentials
	}

	if _, err := r.store.GetByUsername(ctx, username); err == nil {
		return "", xerrors.ErrSessionAlreadyActive
	}

	now := time.Now()
	sess := &session.ActiveSession{
		SessionID:    token.NewSessionID(),
		Username:     username,
		Role:         string(u.Role),
		LoginAt:      now,
		LastActiveAt: now,
	}

	if err := r.store.Put(ctx, sess); err != nil {
		return "", err
	}

	// No live session exists, so any open ledger entry for the username is a
	// leftover from a crash or a failed close. Stamp it ended now rather than
	// leaving two open spans for one user until the next startup reconcile.
	if stale, err := r.history.OpenByUsername(ctx, username); err == nil {
		if err := r.history.Close(ctx, stale.SessionID, session.StatusEnded, now); err != nil {
			r.logger.Warn("failed to close stale history entry",
				zap.String("username", username),
				zap.String("session_id", stale.SessionID),
				zap.Error(err),
			)
		}
	}

	entry := &session.HistoryEntry{
		Username:  username,
		SessionID: sess.SessionID,
		Role:      sess.Role,
		LoginAt:   now,
		Status:    session.StatusActive,
	}
	if err := r.history.Append(ctx, entry); err != nil {
		// Registry presence is the source of truth; a ledger write failure
		// loses audit detail but must not strand the login.
		r.logger.Error("failed to append history entry",
			zap.String("username", username),
			zap.Error(err),
		)
	}

	r.logger.Info("session created",
		zap.String("username", username),
		zap.String("session_id", sess.SessionID),
		zap.String("role", sess.Role),
	)

	return sess.SessionID, nil
}

// Validate resolves a session token to an identity. The stored record must
// still carry the presented token; a record owned by a newer login does not
// validate an older token.
func (r *Registry) Validate(ctx context.Context, sessionID string) (*session.Identity, error) {
	sess, err := r.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, xerrors.ErrSessionNotFound
	}
	if sess.SessionID != sessionID {
		return nil, xerrors.ErrSessionNotFound
	}

	if _, err := r.users.Get(sess.Username); err != nil {
		return nil, xerrors.ErrUserMissing
	}

	// Refresh activity off the request path, the way reads should never
	// block on bookkeeping. The touch is a mutation, so it takes the same
	// per-username lock as Create and Remove; a touch interleaving with a
	// termination must not write the session record back after the delete.
	go func(username string) {
		unlock := r.locks.lock(username)
		defer unlock()
		if err := r.store.Touch(context.Background(), username, time.Now()); err != nil && !xerrors.Is(err, xerrors.ErrSessionNotFound) {
			r.logger.Warn("failed to touch session activity",
				zap.String("username", username),
				zap.Error(err),
			)
		}
	}(sess.Username)

	return &session.Identity{Username: sess.Username, Role: sess.Role}, nil
}

// Resolve completes a {username, sessionId} pair from whichever half is
// given. Both empty fails with ErrMissingIdentifier; both set but pointing
// at different sessions fails with ErrMismatch; no live session fails with
// ErrSessionNotFound.
func (r *Registry) Resolve(ctx context.Context, username, sessionID string) (*session.ActiveSession, error) {
	switch {
	case username == "" && sessionID == "":
		return nil, xerrors.ErrMissingIdentifier

	case username != "" && sessionID != "":
		sess, err := r.store.GetByUsername(ctx, username)
		if err != nil {
			return nil, xerrors.ErrSessionNotFound
		}
		if sess.SessionID != sessionID {
			return nil, xerrors.ErrMismatch
		}
		return sess, nil

	case username != "":
		sess, err := r.store.GetByUsername(ctx, username)
		if err != nil {
			return nil, xerrors.ErrSessionNotFound
		}
		return sess, nil

	default:
		sess, err := r.store.GetBySessionID(ctx, sessionID)
		if err != nil {
			return nil, xerrors.ErrSessionNotFound
		}
		return sess, nil
	}
}

// Remove deletes the active session for a username and returns a snapshot
// of what was removed. Calling it for an absent session returns
// ErrSessionNotFound; the store is left unchanged.
func (r *Registry) Remove(ctx context.Context, username string) (*session.ActiveSession, error) {
	unlock := r.locks.lock(username)
	defer unlock()

	sess, err := r.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, xerrors.ErrSessionNotFound
	}
	if err := r.store.Delete(ctx, username); err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns all active sessions.
func (r *Registry) List(ctx context.Context) ([]*session.ActiveSession, error) {
	return r.store.List(ctx)
}

// GetByUsername exposes presence lookups for the ledger derivation.
func (r *Registry) GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error) {
	return r.store.GetByUsername(ctx, username)
}
