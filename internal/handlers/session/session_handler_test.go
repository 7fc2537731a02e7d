package session

import (
	"context"
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

func newHistoryRouter(t *testing.T) *gin.Engine {
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
	h := NewSessionHandler(reg, led, coord, users, zap.NewNop())

	ctx := context.Background()
	if _, err := reg.Create(ctx, "alice", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	// bob's span survived a crash; nothing live backs it.
	err = history.Append(ctx, &session.HistoryEntry{
		Username:  "bob",
		SessionID: "s-old",
		Role:      "user",
		LoginAt:   time.Now().Add(-time.Hour),
		Status:    session.StatusActive,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/session-history", h.SessionHistory)
	return r
}

func getHistory(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeViews(t *testing.T, w *httptest.ResponseRecorder) []session.HistoryView {
	t.Helper()
	var views []session.HistoryView
	if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
		t.Fatalf("response: %v", err)
	}
	return views
}

func TestSessionHistoryStatusFilter(t *testing.T) {
	r := newHistoryRouter(t)

	w := getHistory(t, r, "/session-history")
	if w.Code != http.StatusOK {
		t.Fatalf("unfiltered status: got %d", w.Code)
	}
	if views := decodeViews(t, w); len(views) != 2 {
		t.Fatalf("unfiltered: got %d entries, want 2", len(views))
	}

	w = getHistory(t, r, "/session-history?status=active")
	if w.Code != http.StatusOK {
		t.Fatalf("active filter status: got %d", w.Code)
	}
	views := decodeViews(t, w)
	if len(views) != 1 || views[0].Username != "alice" || views[0].Status != session.StatusActive {
		t.Fatalf("active filter: %+v", views)
	}

	w = getHistory(t, r, "/session-history?status=ended,terminated")
	if w.Code != http.StatusOK {
		t.Fatalf("ended filter status: got %d", w.Code)
	}
	views = decodeViews(t, w)
	if len(views) != 1 || views[0].Username != "bob" || views[0].Status != session.StatusEnded {
		t.Fatalf("ended filter: %+v", views)
	}
}

func TestSessionHistoryRejectsUnknownStatus(t *testing.T) {
	r := newHistoryRouter(t)

	w := getHistory(t, r, "/session-history?status=zombie")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: got %d, want 400", w.Code)
	}
}
