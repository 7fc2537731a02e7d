package registry

import "sync"

// usernameLocks hands out one mutex per username so mutations on different
// users never contend while mutations on the same user fully serialize.
type usernameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUsernameLocks() *usernameLocks {
	return &usernameLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *usernameLocks) lock(username string) func() {
	l.mu.Lock()
	m, ok := l.locks[username]
	if !ok {
		m = &sync.Mutex{}
		l.locks[username] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
