// internal/repository/memstore/memstore.go
//
// In-memory implementations of the session stores. They back the unit tests
// and the single-binary development mode, and mirror the semantics of the
// redis and postgres stores exactly.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"panel-service/internal/domain/session"
	xerrors "panel-service/internal/pkg/errors"
)

type ActiveStore struct {
	mu       sync.RWMutex
	byUser   map[string]*session.ActiveSession
	byToken  map[string]string
}

func NewActiveStore() *ActiveStore {
	return &ActiveStore{
		byUser:  make(map[string]*session.ActiveSession),
		byToken: make(map[string]string),
	}
}

func (s *ActiveStore) Put(ctx context.Context, sess *session.ActiveSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[sess.Username]; exists {
		return xerrors.ErrSessionAlreadyActive
	}
	copied := *sess
	s.byUser[sess.Username] = &copied
	s.byToken[sess.SessionID] = sess.Username
	return nil
}

func (s *ActiveStore) GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byUser[username]
	if !ok {
		return nil, xerrors.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *ActiveStore) GetBySessionID(ctx context.Context, sessionID string) (*session.ActiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.byToken[sessionID]
	if !ok {
		return nil, xerrors.ErrSessionNotFound
	}
	sess, ok := s.byUser[username]
	if !ok || sess.SessionID != sessionID {
		return nil, xerrors.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *ActiveStore) Delete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byUser[username]; ok {
		delete(s.byToken, sess.SessionID)
	}
	delete(s.byUser, username)
	return nil
}

func (s *ActiveStore) Touch(ctx context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[username]
	if !ok {
		return xerrors.ErrSessionNotFound
	}
	sess.LastActiveAt = at
	return nil
}

func (s *ActiveStore) List(ctx context.Context) ([]*session.ActiveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*session.ActiveSession, 0, len(s.byUser))
	for _, sess := range s.byUser {
		copied := *sess
		sessions = append(sessions, &copied)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Username < sessions[j].Username
	})
	return sessions, nil
}

type HistoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []*session.HistoryEntry
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{nextID: 1}
}

func (s *HistoryStore) Append(ctx context.Context, entry *session.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	copied.ID = s.nextID
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *HistoryStore) Close(ctx context.Context, sessionID string, status session.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := false
	for _, e := range s.entries {
		if e.SessionID == sessionID && e.LogoutAt == nil {
			stamp := at
			e.LogoutAt = &stamp
			e.Status = status
			closed = true
		}
	}
	if !closed {
		return xerrors.ErrNotFound
	}
	return nil
}

func (s *HistoryStore) OpenByUsername(ctx context.Context, username string) (*session.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *session.HistoryEntry
	for _, e := range s.entries {
		if e.Username == username && e.LogoutAt == nil {
			if latest == nil || e.LoginAt.After(latest.LoginAt) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, xerrors.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *HistoryStore) List(ctx context.Context) ([]*session.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.entries), nil
}

func (s *HistoryStore) ListOpen(ctx context.Context) ([]*session.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*session.HistoryEntry
	for _, e := range s.entries {
		if e.LogoutAt == nil {
			open = append(open, e)
		}
	}
	return s.copyOf(open), nil
}

func (s *HistoryStore) ListByStatuses(ctx context.Context, statuses []session.Status) ([]*session.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[session.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var matched []*session.HistoryEntry
	for _, e := range s.entries {
		if want[e.Status] {
			matched = append(matched, e)
		}
	}
	return s.copyOf(matched), nil
}

func (s *HistoryStore) copyOf(entries []*session.HistoryEntry) []*session.HistoryEntry {
	out := make([]*session.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		copied := *e
		if e.LogoutAt != nil {
			stamp := *e.LogoutAt
			copied.LogoutAt = &stamp
		}
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LoginAt.After(out[j].LoginAt)
	})
	return out
}
