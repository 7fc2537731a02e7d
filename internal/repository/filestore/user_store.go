// internal/repository/filestore/user_store.go
package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"panel-service/internal/domain/user"
	xerrors "panel-service/internal/pkg/errors"
)

// UserStore keeps all user records in a single JSON file. Every mutation is
// serialized behind the store mutex and flushed atomically (write to a temp
// file, then rename), so concurrent admin actions cannot interleave partial
// writes.
type UserStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*user.User
}

func NewUserStore(dataDir string) (*UserStore, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	s := &UserStore{
		path:  filepath.Join(dataDir, "users.json"),
		users: make(map[string]*user.User),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *UserStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read user file: %w", err)
	}
	if err := json.Unmarshal(data, &s.users); err != nil {
		return fmt.Errorf("failed to parse user file: %w", err)
	}
	return nil
}

// flush must be called with the write lock held.
func (s *UserStore) flush() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write user file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace user file: %w", err)
	}
	return nil
}

// Create adds a new user record.
func (s *UserStore) Create(u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.Username]; exists {
		return xerrors.ErrDuplicateEntry
	}
	s.users[u.Username] = u
	return s.flush()
}

// Get returns a copy of the user record.
func (s *UserStore) Get(username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// Update applies fn to the stored record under the write lock and flushes.
func (s *UserStore) Update(username string, fn func(*user.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return xerrors.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	return s.flush()
}

// Delete removes a user record.
func (s *UserStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return xerrors.ErrNotFound
	}
	delete(s.users, username)
	return s.flush()
}

// List returns copies of all user records.
func (s *UserStore) List() ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		users = append(users, &copied)
	}
	return users, nil
}
