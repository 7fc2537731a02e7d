package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"panel-service/internal/domain/session"
	"panel-service/internal/domain/user"
	wstypes "panel-service/internal/domain/websocket"
	"panel-service/internal/ledger"
	xerrors "panel-service/internal/pkg/errors"
	"panel-service/internal/registry"
	"panel-service/internal/repository/memstore"
	"panel-service/internal/service/termination"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeUsers struct {
	users map[string]*user.User
}

func (f *fakeUsers) Get(username string) (*user.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return u, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(string, *wstypes.WSMessage)  {}
func (noopNotifier) Has(string) bool                  { return false }
func (noopNotifier) CloseAfter(string, time.Duration) {}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	users := &fakeUsers{users: map[string]*user.User{
		"alice": {Username: "alice", SecretHash: string(hash), Role: user.RoleUser},
	}}

	history := memstore.NewHistoryStore()
	reg := registry.New(users, memstore.NewActiveStore(), history, zap.NewNop())
	led := ledger.New(history, reg, 5*time.Minute, 30*time.Minute, zap.NewNop())
	coord := termination.NewCoordinator(reg, led, noopNotifier{}, time.Second, zap.NewNop())
	h := NewAuthHandler(reg, coord, zap.NewNop())

	r := gin.New()
	r.POST("/auth", h.Login)
	r.POST("/validate-session", h.ValidateSession)
	r.POST("/logout", h.Logout)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginFlow(t *testing.T) {
	r := newTestRouter(t)

	// Successful login returns {sessionId, role}.
	w := postJSON(t, r, "/auth", session.LoginRequest{Username: "alice", Secret: "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp session.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if resp.SessionID == "" || resp.Role != "user" {
		t.Fatalf("login response: %+v", resp)
	}

	// Second login while active is 403.
	w = postJSON(t, r, "/auth", session.LoginRequest{Username: "alice", Secret: "pw"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("second login status: got %d, want 403", w.Code)
	}

	// Wrong secret is 401.
	w = postJSON(t, r, "/auth", session.LoginRequest{Username: "alice", Secret: "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad secret status: got %d, want 401", w.Code)
	}

	// Validate resolves the token.
	w = postJSON(t, r, "/validate-session", session.ValidateRequest{SessionID: resp.SessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("validate status: got %d", w.Code)
	}
	var identity session.Identity
	if err := json.Unmarshal(w.Body.Bytes(), &identity); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if identity.Username != "alice" {
		t.Fatalf("identity: %+v", identity)
	}

	// Unknown token is 401.
	w = postJSON(t, r, "/validate-session", session.ValidateRequest{SessionID: "bogus"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status: got %d, want 401", w.Code)
	}

	// Logout ends the session; a fresh login then succeeds.
	w = postJSON(t, r, "/logout", session.TerminateRequest{SessionID: resp.SessionID})
	if w.Code != http.StatusOK {
		t.Fatalf("logout status: got %d", w.Code)
	}
	w = postJSON(t, r, "/auth", session.LoginRequest{Username: "alice", Secret: "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("relogin status: got %d", w.Code)
	}
}

func TestLogoutWithoutIdentifier(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/logout", session.TerminateRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty logout status: got %d, want 400", w.Code)
	}
}
