package ledger

import (
	"context"
	"testing"
	"time"

	"panel-service/internal/domain/session"
	"panel-service/internal/repository/memstore"

	"go.uber.org/zap"
)

const (
	inactiveAfter  = 5 * time.Minute
	terminateAfter = 30 * time.Minute
)

func openEntry(username, sid string, loginAt time.Time) *session.HistoryEntry {
	return &session.HistoryEntry{
		Username:  username,
		SessionID: sid,
		Role:      "user",
		LoginAt:   loginAt,
		Status:    session.StatusActive,
	}
}

func TestDeriveStatus(t *testing.T) {
	now := time.Now()
	closedAt := now.Add(-time.Minute)

	liveSession := func(sid string, lastActive time.Time) *session.ActiveSession {
		return &session.ActiveSession{
			SessionID:    sid,
			Username:     "alice",
			LoginAt:      now.Add(-time.Minute),
			LastActiveAt: lastActive,
		}
	}

	tests := []struct {
		name   string
		entry  *session.HistoryEntry
		active *session.ActiveSession
		want   session.Status
	}{
		{
			name: "terminated entry stays terminated",
			entry: &session.HistoryEntry{
				SessionID: "s1", LoginAt: now, Status: session.StatusTerminated,
			},
			active: liveSession("s1", now),
			want:   session.StatusTerminated,
		},
		{
			name: "closed entry keeps stored status",
			entry: &session.HistoryEntry{
				SessionID: "s1", LoginAt: now.Add(-time.Hour),
				LogoutAt: &closedAt, Status: session.StatusEnded,
			},
			active: nil,
			want:   session.StatusEnded,
		},
		{
			name:   "open entry without live session is ended regardless of time",
			entry:  openEntry("alice", "s1", now),
			active: nil,
			want:   session.StatusEnded,
		},
		{
			name:   "open entry whose username logged in again is ended",
			entry:  openEntry("alice", "s1", now),
			active: liveSession("s2", now),
			want:   session.StatusEnded,
		},
		{
			name:   "idle past threshold is inactive",
			entry:  openEntry("alice", "s1", now.Add(-time.Minute)),
			active: liveSession("s1", now.Add(-6*time.Minute)),
			want:   session.StatusInactive,
		},
		{
			name:   "aged past max lifetime is terminated",
			entry:  openEntry("alice", "s1", now.Add(-31*time.Minute)),
			active: liveSession("s1", now),
			want:   session.StatusTerminated,
		},
		{
			name:   "fresh and live is active",
			entry:  openEntry("alice", "s1", now.Add(-time.Minute)),
			active: liveSession("s1", now),
			want:   session.StatusActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.entry, tt.active, now, inactiveAfter, terminateAfter)
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInactiveRevertsToActive(t *testing.T) {
	now := time.Now()
	entry := openEntry("alice", "s1", now.Add(-10*time.Minute))
	active := &session.ActiveSession{
		SessionID: "s1", Username: "alice",
		LoginAt: entry.LoginAt, LastActiveAt: now.Add(-6 * time.Minute),
	}

	if got := DeriveStatus(entry, active, now, inactiveAfter, terminateAfter); got != session.StatusInactive {
		t.Fatalf("idle session: got %s, want inactive", got)
	}

	// Activity resumes.
	active.LastActiveAt = now
	if got := DeriveStatus(entry, active, now, inactiveAfter, terminateAfter); got != session.StatusActive {
		t.Fatalf("resumed session: got %s, want active", got)
	}
}

func TestAppendClosed(t *testing.T) {
	store := memstore.NewHistoryStore()
	active := memstore.NewActiveStore()
	led := New(store, active, inactiveAfter, terminateAfter, zap.NewNop())
	ctx := context.Background()

	snapshot := &session.ActiveSession{
		SessionID: "s1", Username: "alice", Role: "user",
		LoginAt: time.Now().Add(-time.Hour),
	}
	at := time.Now()
	if err := led.AppendClosed(ctx, snapshot, session.StatusTerminated, at); err != nil {
		t.Fatalf("append closed: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != session.StatusTerminated || e.LogoutAt == nil || !e.LogoutAt.Equal(at) {
		t.Fatalf("reconstructed entry wrong: %+v", e)
	}
	if !e.LoginAt.Equal(snapshot.LoginAt) {
		t.Fatalf("login time not carried from snapshot: %v", e.LoginAt)
	}
}

func TestReconcile(t *testing.T) {
	store := memstore.NewHistoryStore()
	active := memstore.NewActiveStore()
	led := New(store, active, inactiveAfter, terminateAfter, zap.NewNop())
	ctx := context.Background()

	// alice has a live session matching her open entry; bob's session died
	// with a previous server run.
	now := time.Now()
	if err := store.Append(ctx, openEntry("alice", "s1", now)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, openEntry("bob", "s2", now)); err != nil {
		t.Fatal(err)
	}
	if err := active.Put(ctx, &session.ActiveSession{
		SessionID: "s1", Username: "alice", LoginAt: now, LastActiveAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	closed, err := led.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed %d entries, want 1", closed)
	}

	open, err := store.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].Username != "alice" {
		t.Fatalf("surviving open entries: %+v", open)
	}
}

func TestHistoryByStatuses(t *testing.T) {
	store := memstore.NewHistoryStore()
	active := memstore.NewActiveStore()
	led := New(store, active, inactiveAfter, terminateAfter, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	// alice: force-logged-out. bob: logged out normally. carol: live.
	// dave: open entry with nothing live behind it, so it derives ended.
	if err := store.Append(ctx, openEntry("alice", "s1", now.Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(ctx, "s1", session.StatusTerminated, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, openEntry("bob", "s2", now.Add(-2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(ctx, "s2", session.StatusEnded, now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, openEntry("carol", "s3", now)); err != nil {
		t.Fatal(err)
	}
	if err := active.Put(ctx, &session.ActiveSession{
		SessionID: "s3", Username: "carol", Role: "user",
		LoginAt: now, LastActiveAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, openEntry("dave", "s4", now)); err != nil {
		t.Fatal(err)
	}

	usernames := func(views []session.HistoryView) map[string]bool {
		got := make(map[string]bool, len(views))
		for _, v := range views {
			got[v.Username] = true
		}
		return got
	}

	// Stored-terminal statuses come straight from the store.
	views, err := led.HistoryByStatuses(ctx, []session.Status{session.StatusTerminated})
	if err != nil {
		t.Fatalf("terminated: %v", err)
	}
	if got := usernames(views); len(got) != 1 || !got["alice"] {
		t.Fatalf("terminated filter: %v", got)
	}

	// ended matches both the closed entry and the orphaned open one, whose
	// status only exists after derivation.
	views, err = led.HistoryByStatuses(ctx, []session.Status{session.StatusEnded})
	if err != nil {
		t.Fatalf("ended: %v", err)
	}
	if got := usernames(views); len(got) != 2 || !got["bob"] || !got["dave"] {
		t.Fatalf("ended filter: %v", got)
	}

	views, err = led.HistoryByStatuses(ctx, []session.Status{session.StatusActive})
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if got := usernames(views); len(got) != 1 || !got["carol"] {
		t.Fatalf("active filter: %v", got)
	}
	if views[0].Status != session.StatusActive {
		t.Fatalf("carol status: %s", views[0].Status)
	}
}

func TestHistoryDerivesLiveStatus(t *testing.T) {
	store := memstore.NewHistoryStore()
	active := memstore.NewActiveStore()
	led := New(store, active, inactiveAfter, terminateAfter, zap.NewNop())
	ctx := context.Background()

	now := time.Now()
	if err := store.Append(ctx, openEntry("alice", "s1", now)); err != nil {
		t.Fatal(err)
	}
	if err := active.Put(ctx, &session.ActiveSession{
		SessionID: "s1", Username: "alice", Role: "user",
		LoginAt: now, LastActiveAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, openEntry("bob", "s2", now)); err != nil {
		t.Fatal(err)
	}

	views, err := led.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	byUser := make(map[string]session.Status, len(views))
	for _, v := range views {
		byUser[v.Username] = v.Status
	}
	if byUser["alice"] != session.StatusActive {
		t.Fatalf("alice: got %s, want active", byUser["alice"])
	}
	if byUser["bob"] != session.StatusEnded {
		t.Fatalf("bob: got %s, want ended", byUser["bob"])
	}
}
