// internal/repository/redisstore/active_store.go
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"panel-service/internal/domain/session"
	xerrors "panel-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// ActiveStore persists ActiveSession records in Redis. Each session is
// stored twice: the record itself under active:<username> and a token index
// under token:<sessionId> so validation can start from either key. Records
// carry no TTL; presence is the source of truth and removal goes through
// Delete.
type ActiveStore struct {
	client *redis.Client
}

func NewActiveStore(client *redis.Client) *ActiveStore {
	return &ActiveStore{client: client}
}

// Put stores a new active session. Fails with ErrSessionAlreadyActive if the
// username already holds one; the existing record is left untouched.
func (s *ActiveStore) Put(ctx context.Context, sess *session.ActiveSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.sessionKey(sess.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return xerrors.ErrSessionAlreadyActive
	}

	if err := s.client.Set(ctx, s.tokenKey(sess.SessionID), sess.Username, 0).Err(); err != nil {
		// Roll the record back so the invariant stays intact.
		s.client.Del(ctx, s.sessionKey(sess.Username))
		return fmt.Errorf("failed to index session token: %w", err)
	}

	return nil
}

// GetByUsername returns the active session for a username.
func (s *ActiveStore) GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error) {
	data, err := s.client.Get(ctx, s.sessionKey(username)).Bytes()
	if err == redis.Nil {
		return nil, xerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess session.ActiveSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// GetBySessionID resolves the token index and re-checks that the stored
// record still carries the same token. A stale index pointing at a record
// owned by a newer login is treated as not found.
func (s *ActiveStore) GetBySessionID(ctx context.Context, sessionID string) (*session.ActiveSession, error) {
	username, err := s.client.Get(ctx, s.tokenKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, xerrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session token: %w", err)
	}

	sess, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if sess.SessionID != sessionID {
		return nil, xerrors.ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session and its token index. Missing records are not
// an error; callers decide what absence means.
func (s *ActiveStore) Delete(ctx context.Context, username string) error {
	sess, err := s.GetByUsername(ctx, username)
	if err == nil {
		if err := s.client.Del(ctx, s.tokenKey(sess.SessionID)).Err(); err != nil {
			return fmt.Errorf("failed to delete token index: %w", err)
		}
	}
	if err := s.client.Del(ctx, s.sessionKey(username)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Touch refreshes the last-active timestamp. The write is conditional on the
// record still existing (SET XX) so a touch racing a delete cannot write the
// session back; a resurrected record with no token index would block every
// future login for the username.
func (s *ActiveStore) Touch(ctx context.Context, username string, at time.Time) error {
	sess, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	sess.LastActiveAt = at

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.client.SetArgs(ctx, s.sessionKey(username), data, redis.SetArgs{Mode: "XX"}).Err()
	if err == redis.Nil {
		return xerrors.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// List returns every active session.
func (s *ActiveStore) List(ctx context.Context) ([]*session.ActiveSession, error) {
	var sessions []*session.ActiveSession

	iter := s.client.Scan(ctx, 0, "active:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue // key expired between scan and read
		}
		var sess session.ActiveSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		sessions = append(sessions, &sess)
	}

	return sessions, iter.Err()
}

func (s *ActiveStore) sessionKey(username string) string {
	return fmt.Sprintf("active:%s", username)
}

func (s *ActiveStore) tokenKey(sessionID string) string {
	return fmt.Sprintf("token:%s", sessionID)
}
