package filestore

import (
	"testing"
	"time"

	"panel-service/internal/domain/bundle"
	"panel-service/internal/domain/user"
	xerrors "panel-service/internal/pkg/errors"
)

func TestUserStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store, err := NewUserStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	u := &user.User{
		Username:   "alice",
		SecretHash: "hash",
		Role:       user.RoleUser,
		JoinedAt:   time.Now().Truncate(time.Second),
		Services:   []string{},
	}
	if err := store.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(u); !xerrors.Is(err, xerrors.ErrDuplicateEntry) {
		t.Fatalf("duplicate create: got %v, want ErrDuplicateEntry", err)
	}

	// Reopen from disk: the record must survive the process.
	reopened, err := NewUserStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get("alice")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Username != "alice" || got.Role != user.RoleUser {
		t.Fatalf("reloaded user: %+v", got)
	}

	if err := reopened.Delete("alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := reopened.Get("alice"); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("get after delete: got %v, want ErrNotFound", err)
	}
}

func TestUserStoreUpdate(t *testing.T) {
	store, err := NewUserStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Create(&user.User{Username: "bob", Role: user.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}

	expiry := time.Now().Add(time.Hour)
	err = store.Update("bob", func(u *user.User) error {
		u.Grant("vpn", expiry)
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get("bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasService("vpn", time.Now()) {
		t.Fatal("grant not persisted")
	}
}

func TestBundleStoreRoundTrip(t *testing.T) {
	store, err := NewBundleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	b := &bundle.CredentialBundle{
		Domain:       "example.com",
		Cookies:      []bundle.Cookie{{Name: "auth", Value: "1", Domain: "example.com"}},
		LocalStore:   map[string]string{"k": "v"},
		SessionStore: map[string]string{},
	}
	if err := store.Save(b); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load("example.com")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Cookies) != 1 || got.Cookies[0].Name != "auth" || got.LocalStore["k"] != "v" {
		t.Fatalf("reloaded bundle: %+v", got)
	}

	if _, err := store.Load("missing.com"); !xerrors.Is(err, xerrors.ErrNotFound) {
		t.Fatalf("missing bundle: got %v, want ErrNotFound", err)
	}
}

func TestBundleStoreRejectsGarbage(t *testing.T) {
	store, err := NewBundleStore(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.SaveRaw("example.com.json", []byte("not json")); err == nil {
		t.Fatal("garbage payload accepted")
	}
}
