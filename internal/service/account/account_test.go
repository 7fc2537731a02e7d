package account

import (
	"context"
	"testing"
	"time"

	"panel-service/internal/domain/session"
	"panel-service/internal/domain/user"
	wstypes "panel-service/internal/domain/websocket"
	xerrors "panel-service/internal/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users map[string]*user.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]*user.User{}}
}

func (f *fakeStore) Create(u *user.User) error {
	if _, exists := f.users[u.Username]; exists {
		return xerrors.ErrDuplicateEntry
	}
	f.users[u.Username] = u
	return nil
}

func (f *fakeStore) Get(username string) (*user.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) Update(username string, fn func(*user.User) error) error {
	u, ok := f.users[username]
	if !ok {
		return xerrors.ErrNotFound
	}
	return fn(u)
}

func (f *fakeStore) Delete(username string) error {
	delete(f.users, username)
	return nil
}

func (f *fakeStore) List() ([]*user.User, error) {
	out := make([]*user.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeSessions struct {
	active map[string]*session.ActiveSession
}

func (f *fakeSessions) GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error) {
	s, ok := f.active[username]
	if !ok {
		return nil, xerrors.ErrSessionNotFound
	}
	return s, nil
}

type fakeEnder struct {
	terminated []string
}

func (f *fakeEnder) Terminate(ctx context.Context, req session.TerminateRequest) (string, error) {
	f.terminated = append(f.terminated, req.Username)
	return req.Username, nil
}

type fakeNotifier struct {
	sent []*wstypes.WSMessage
}

func (f *fakeNotifier) Send(sessionID string, msg *wstypes.WSMessage) {
	f.sent = append(f.sent, msg)
}

func newService(store *fakeStore, sessions *fakeSessions, ender *fakeEnder, notifier *fakeNotifier) *Service {
	if sessions == nil {
		sessions = &fakeSessions{active: map[string]*session.ActiveSession{}}
	}
	return NewService(store, sessions, ender, notifier, zap.NewNop())
}

var (
	admin    = session.Identity{Username: "root", Role: "admin"}
	reseller = session.Identity{Username: "rs", Role: "reseller"}
)

func TestCreateUserHashesSecret(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, &fakeEnder{}, &fakeNotifier{})

	info, err := svc.CreateUser(context.Background(), admin, &user.CreateUserRequest{
		Username: "alice", Secret: "pw", Role: user.RoleUser,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.Username != "alice" || info.Role != user.RoleUser {
		t.Fatalf("info: %+v", info)
	}

	stored := store.users["alice"]
	if stored.SecretHash == "pw" {
		t.Fatal("secret stored in the clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.SecretHash), []byte("pw")) != nil {
		t.Fatal("stored hash does not verify the secret")
	}
}

func TestResellerCreatesScopedPlainUsers(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil, &fakeEnder{}, &fakeNotifier{})

	// Even if the reseller asks for an admin, they get a plain user.
	if _, err := svc.CreateUser(context.Background(), reseller, &user.CreateUserRequest{
		Username: "sub", Secret: "pw", Role: user.RoleAdmin,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	stored := store.users["sub"]
	if stored.Role != user.RoleUser {
		t.Fatalf("role: got %s, want user", stored.Role)
	}
	if stored.CreatedBy != "rs" {
		t.Fatalf("created_by: got %s, want rs", stored.CreatedBy)
	}
}

func TestResellerCannotTouchForeignUsers(t *testing.T) {
	store := newFakeStore()
	store.users["foreign"] = &user.User{Username: "foreign", Role: user.RoleUser, CreatedBy: "someone-else"}
	svc := newService(store, nil, &fakeEnder{}, &fakeNotifier{})
	ctx := context.Background()

	if err := svc.DeleteUser(ctx, reseller, "foreign"); !xerrors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("delete: got %v, want ErrForbidden", err)
	}
	err := svc.GrantService(ctx, reseller, "foreign", &user.GrantServiceRequest{
		Service: "svc", ExpiresAt: time.Now().Add(time.Hour),
	})
	if !xerrors.Is(err, xerrors.ErrForbidden) {
		t.Fatalf("grant: got %v, want ErrForbidden", err)
	}
}

func TestDeleteUserEndsLiveSession(t *testing.T) {
	store := newFakeStore()
	store.users["alice"] = &user.User{Username: "alice", Role: user.RoleUser}
	ender := &fakeEnder{}
	svc := newService(store, nil, ender, &fakeNotifier{})

	if err := svc.DeleteUser(context.Background(), admin, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ender.terminated) != 1 || ender.terminated[0] != "alice" {
		t.Fatalf("session not terminated: %v", ender.terminated)
	}
	if _, ok := store.users["alice"]; ok {
		t.Fatal("user record survived deletion")
	}
}

func TestGrantPushesServiceUpdated(t *testing.T) {
	store := newFakeStore()
	store.users["alice"] = &user.User{Username: "alice", Role: user.RoleUser}
	sessions := &fakeSessions{active: map[string]*session.ActiveSession{
		"alice": {SessionID: "s1", Username: "alice"},
	}}
	notifier := &fakeNotifier{}
	svc := newService(store, sessions, &fakeEnder{}, notifier)
	ctx := context.Background()

	expiry := time.Now().Add(24 * time.Hour)
	if err := svc.GrantService(ctx, admin, "alice", &user.GrantServiceRequest{
		Service: "vpn", ExpiresAt: expiry,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	if !store.users["alice"].HasService("vpn", time.Now()) {
		t.Fatal("grant not recorded")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Type != wstypes.EventTypeServiceUpdated {
		t.Fatalf("push: %+v", notifier.sent)
	}

	if err := svc.RevokeService(ctx, admin, "alice", "vpn"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.users["alice"].HasService("vpn", time.Now()) {
		t.Fatal("revoke not recorded")
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("revoke push missing: %d events", len(notifier.sent))
	}
}

func TestListUsersScopedForResellers(t *testing.T) {
	store := newFakeStore()
	store.users["own"] = &user.User{Username: "own", Role: user.RoleUser, CreatedBy: "rs"}
	store.users["foreign"] = &user.User{Username: "foreign", Role: user.RoleUser}
	svc := newService(store, nil, &fakeEnder{}, &fakeNotifier{})
	ctx := context.Background()

	all, err := svc.ListUsers(ctx, admin)
	if err != nil {
		t.Fatalf("list as admin: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d users, want 2", len(all))
	}

	scoped, err := svc.ListUsers(ctx, reseller)
	if err != nil {
		t.Fatalf("list as reseller: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Username != "own" {
		t.Fatalf("reseller scope: %+v", scoped)
	}
}
