// internal/bridge/context.go
package bridge

import (
	"context"

	"panel-service/internal/domain/bundle"
)

// CookieContext abstracts the embedded browser profile the bridge captures
// from and replays into. Implementations wrap whatever runtime hosts the
// panel (a webview, a driven browser); tests use an in-memory fake.
type CookieContext interface {
	// Cookies returns every cookie visible to the profile, not just the
	// current domain's.
	Cookies(ctx context.Context) ([]bundle.Cookie, error)
	// SetCookie writes one cookie. A failure affects that cookie only.
	SetCookie(ctx context.Context, c bundle.Cookie) error
	// ClearCookies removes all cookies from the profile.
	ClearCookies(ctx context.Context) error

	LocalStorage(ctx context.Context) (map[string]string, error)
	SessionStorage(ctx context.Context) (map[string]string, error)
	SetLocalStorageItem(ctx context.Context, key, value string) error
	SetSessionStorageItem(ctx context.Context, key, value string) error

	// Reload reloads the current page so the replayed credentials take
	// effect.
	Reload(ctx context.Context) error
}
