// internal/bridge/bridge.go
package bridge

import (
	"context"

	"panel-service/internal/domain/bundle"
	xerrors "panel-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// The source platform never restores this cookie. Kept as-is; whether the
// skip is a workaround for an unrestorable cookie or a leftover is unknown,
// so it is not generalized to other CSRF token names.
const skippedCookieName = "XSRF-TOKEN"

// LocalStore is the on-disk bundle fallback used when the remote store is
// unreachable.
type LocalStore interface {
	Save(b *bundle.CredentialBundle) error
	Load(domain string) (*bundle.CredentialBundle, error)
}

// Remote is the server-side bundle store.
type Remote interface {
	Upload(ctx context.Context, b *bundle.CredentialBundle) error
	Download(ctx context.Context, domain string) (*bundle.CredentialBundle, error)
}

// RestoreResult aggregates the per-item outcomes of a restore. A restore
// that reaches the reload step is an overall success even when individual
// cookies or storage keys failed.
type RestoreResult struct {
	CookiesRestored int      `json:"cookiesRestored"`
	CookiesFailed   []string `json:"cookiesFailed,omitempty"`
	CookiesSkipped  []string `json:"cookiesSkipped,omitempty"`
	LocalKeys       int      `json:"localKeys"`
	SessionKeys     int      `json:"sessionKeys"`
}

// Bridge captures and replays browser credential material per network
// domain. It is independent of server session identity: bundles are keyed by
// domain, and the same bundle restores a session for whichever account the
// cookies belong to.
type Bridge struct {
	browser CookieContext
	local   LocalStore
	remote  Remote
	logger  *zap.Logger
}

func New(browser CookieContext, local LocalStore, remote Remote, logger *zap.Logger) *Bridge {
	return &Bridge{
		browser: browser,
		local:   local,
		remote:  remote,
		logger:  logger,
	}
}

// Save captures the cookies and storages for domain and persists them
// locally, then uploads to the remote store. An upload failure is logged but
// never fails the save; the local file is the fallback the next restore will
// find.
func (b *Bridge) Save(ctx context.Context, domain string) (*bundle.CredentialBundle, error) {
	cookies, err := b.browser.Cookies(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to enumerate cookies")
	}

	kept := bundle.FilterCookies(cookies, domain)
	if len(kept) == 0 {
		return nil, xerrors.ErrNoRelevantCookies
	}

	// Storage capture is best-effort: a context without storage access still
	// produces a usable cookie bundle.
	localStore, err := b.browser.LocalStorage(ctx)
	if err != nil {
		b.logger.Warn("failed to capture local storage", zap.String("domain", domain), zap.Error(err))
		localStore = map[string]string{}
	}
	sessionStore, err := b.browser.SessionStorage(ctx)
	if err != nil {
		b.logger.Warn("failed to capture session storage", zap.String("domain", domain), zap.Error(err))
		sessionStore = map[string]string{}
	}

	saved := &bundle.CredentialBundle{
		Domain:       domain,
		Cookies:      kept,
		LocalStore:   localStore,
		SessionStore: sessionStore,
	}

	if err := b.local.Save(saved); err != nil {
		return nil, xerrors.Wrap(err, "failed to persist bundle")
	}

	if b.remote != nil {
		if err := b.remote.Upload(ctx, saved); err != nil {
			b.logger.Warn("bundle upload failed, local copy kept",
				zap.String("domain", domain),
				zap.Error(err),
			)
		}
	}

	b.logger.Info("credentials saved",
		zap.String("domain", domain),
		zap.Int("cookies", len(kept)),
		zap.Int("local_keys", len(localStore)),
		zap.Int("session_keys", len(sessionStore)),
	)
	return saved, nil
}

// Restore fetches the bundle for domain (remote first, local fallback),
// clears the browser's cookies, and replays the bundle. Individual cookie or
// storage failures are logged and counted, never fatal; the operation
// succeeds once the reload is triggered.
func (b *Bridge) Restore(ctx context.Context, domain string) (*RestoreResult, error) {
	saved := b.fetch(ctx, domain)
	if saved == nil {
		return nil, xerrors.ErrNoRelevantCookies
	}
	if !saved.HasRelevantCookies(domain) {
		return nil, xerrors.ErrNoRelevantCookies
	}

	// Coarse reset: every cookie in the profile goes, not just this
	// domain's. Stale cookies from a previous identity must not survive into
	// the restored session.
	if err := b.browser.ClearCookies(ctx); err != nil {
		return nil, xerrors.Wrap(err, "failed to clear cookies")
	}

	result := &RestoreResult{}
	for _, c := range saved.Cookies {
		if !c.RelatesTo(domain) {
			continue
		}
		if c.Name == skippedCookieName {
			result.CookiesSkipped = append(result.CookiesSkipped, c.Name)
			continue
		}

		if err := b.browser.SetCookie(ctx, replayCookie(c, domain)); err != nil {
			b.logger.Warn("failed to restore cookie",
				zap.String("domain", domain),
				zap.String("cookie", c.Name),
				zap.Error(err),
			)
			result.CookiesFailed = append(result.CookiesFailed, c.Name)
			continue
		}
		result.CookiesRestored++
	}

	result.LocalKeys = b.replayStorage(ctx, saved.LocalStore, b.browser.SetLocalStorageItem, "local")
	result.SessionKeys = b.replayStorage(ctx, saved.SessionStore, b.browser.SetSessionStorageItem, "session")

	if err := b.browser.Reload(ctx); err != nil {
		return result, xerrors.Wrap(err, "failed to reload context")
	}

	b.logger.Info("credentials restored",
		zap.String("domain", domain),
		zap.Int("cookies", result.CookiesRestored),
		zap.Int("failed", len(result.CookiesFailed)),
	)
	return result, nil
}

// fetch returns the freshest reachable bundle for domain, or nil.
func (b *Bridge) fetch(ctx context.Context, domain string) *bundle.CredentialBundle {
	if b.remote != nil {
		if saved, err := b.remote.Download(ctx, domain); err == nil {
			return saved
		} else if !xerrors.Is(err, xerrors.ErrNotFound) {
			b.logger.Warn("remote bundle fetch failed, trying local",
				zap.String("domain", domain),
				zap.Error(err),
			)
		}
	}

	saved, err := b.local.Load(domain)
	if err != nil {
		return nil
	}
	return saved
}

func (b *Bridge) replayStorage(ctx context.Context, items map[string]string, set func(context.Context, string, string) error, kind string) int {
	written := 0
	for key, value := range items {
		if err := set(ctx, key, value); err != nil {
			b.logger.Warn("failed to restore storage item",
				zap.String("storage", kind),
				zap.String("key", key),
				zap.Error(err),
			)
			continue
		}
		written++
	}
	return written
}

// replayCookie applies the security attributes the cookie's name class
// mandates before the write.
func replayCookie(c bundle.Cookie, domain string) bundle.Cookie {
	switch c.Classify() {
	case bundle.ClassHostLocked:
		c.Secure = true
		c.Domain = ""
		c.Path = "/"
	case bundle.ClassSecureLocked:
		c.Secure = true
		if c.Domain == "" {
			c.Domain = domain
		}
	default:
		if c.SameSite == nil {
			none := bundle.SameSiteNone
			c.SameSite = &none
		}
	}
	return c
}
