package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"panel-service/internal/domain/bundle"

	"go.uber.org/zap"
)

// fileProfile is the browser profile exchange file the host webview reads
// and writes. The agent edits it while the webview is closed; the webview
// imports it on next launch. Implements bridge.CookieContext.
type fileProfile struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	data profileData
}

type profileData struct {
	Identity     string            `json:"identity,omitempty"`
	Cookies      []bundle.Cookie   `json:"cookies"`
	LocalStore   map[string]string `json:"localStorage"`
	SessionStore map[string]string `json:"sessionStorage"`
}

func newFileProfile(path string, logger *zap.Logger) (*fileProfile, error) {
	p := &fileProfile{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		p.data = profileData{
			LocalStore:   map[string]string{},
			SessionStore: map[string]string{},
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if p.data.LocalStore == nil {
		p.data.LocalStore = map[string]string{}
	}
	if p.data.SessionStore == nil {
		p.data.SessionStore = map[string]string{}
	}
	return p, nil
}

func (p *fileProfile) Cookies(ctx context.Context) ([]bundle.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bundle.Cookie, len(p.data.Cookies))
	copy(out, p.data.Cookies)
	return out, nil
}

func (p *fileProfile) SetCookie(ctx context.Context, c bundle.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.data.Cookies {
		if existing.Name == c.Name && existing.Domain == c.Domain && existing.Path == c.Path {
			p.data.Cookies[i] = c
			return p.flush()
		}
	}
	p.data.Cookies = append(p.data.Cookies, c)
	return p.flush()
}

func (p *fileProfile) ClearCookies(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Cookies = nil
	return p.flush()
}

func (p *fileProfile) LocalStorage(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyMap(p.data.LocalStore), nil
}

func (p *fileProfile) SessionStorage(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return copyMap(p.data.SessionStore), nil
}

func (p *fileProfile) SetLocalStorageItem(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.LocalStore[key] = value
	return p.flush()
}

func (p *fileProfile) SetSessionStorageItem(ctx context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.SessionStore[key] = value
	return p.flush()
}

// Reload is the webview's job; the agent just records that the profile
// changed out from under it.
func (p *fileProfile) Reload(ctx context.Context) error {
	p.logger.Info("profile updated, webview will pick it up on next launch")
	return nil
}

// ClearIdentity wipes the stored identity after a forced logout.
func (p *fileProfile) ClearIdentity() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data.Identity = ""
	p.data.SessionStore = map[string]string{}
	return p.flush()
}

func (p *fileProfile) flush() error {
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
