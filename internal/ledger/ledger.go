// internal/ledger/ledger.go
package ledger

import (
	"context"
	"time"

	"panel-service/internal/domain/session"
	xerrors "panel-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// HistoryStore is the durable ledger backend.
type HistoryStore interface {
	Append(ctx context.Context, entry *session.HistoryEntry) error
	Close(ctx context.Context, sessionID string, status session.Status, at time.Time) error
	OpenByUsername(ctx context.Context, username string) (*session.HistoryEntry, error)
	List(ctx context.Context) ([]*session.HistoryEntry, error)
	ListOpen(ctx context.Context) ([]*session.HistoryEntry, error)
	ListByStatuses(ctx context.Context, statuses []session.Status) ([]*session.HistoryEntry, error)
}

// ActiveLookup answers "does this username have a live session right now".
type ActiveLookup interface {
	GetByUsername(ctx context.Context, username string) (*session.ActiveSession, error)
}

// Ledger is the append-and-mutate audit trail of session lifecycles. The
// stored status field records the last explicit transition; the live status
// shown to operators is derived at read time against registry presence.
type Ledger struct {
	store          HistoryStore
	active         ActiveLookup
	inactiveAfter  time.Duration
	terminateAfter time.Duration
	logger         *zap.Logger
}

func New(store HistoryStore, active ActiveLookup, inactiveAfter, terminateAfter time.Duration, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:          store,
		active:         active,
		inactiveAfter:  inactiveAfter,
		terminateAfter: terminateAfter,
		logger:         logger,
	}
}

// Append records a new open entry at login time.
func (l *Ledger) Append(ctx context.Context, entry *session.HistoryEntry) error {
	return l.store.Append(ctx, entry)
}

// CloseOpen stamps the open entry for sessionID with a final status.
// Returns ErrNotFound when no open entry exists.
func (l *Ledger) CloseOpen(ctx context.Context, sessionID string, status session.Status, at time.Time) error {
	return l.store.Close(ctx, sessionID, status, at)
}

// AppendClosed reconstructs a closed entry from a session snapshot. Used
// when the ledger drifted and has no open entry for a session that
// verifiably existed; the event is recorded rather than lost.
func (l *Ledger) AppendClosed(ctx context.Context, snapshot *session.ActiveSession, status session.Status, at time.Time) error {
	stamp := at
	entry := &session.HistoryEntry{
		Username:  snapshot.Username,
		SessionID: snapshot.SessionID,
		Role:      snapshot.Role,
		LoginAt:   snapshot.LoginAt,
		LogoutAt:  &stamp,
		Status:    status,
	}
	return l.store.Append(ctx, entry)
}

// History returns every ledger entry with its live, derived status.
func (l *Ledger) History(ctx context.Context) ([]session.HistoryView, error) {
	entries, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]session.HistoryView, 0, len(entries))
	for _, e := range entries {
		var active *session.ActiveSession
		if e.LogoutAt == nil {
			if sess, err := l.active.GetByUsername(ctx, e.Username); err == nil {
				active = sess
			}
		}
		views = append(views, session.HistoryView{
			Username:   e.Username,
			Role:       e.Role,
			LoginTime:  e.LoginAt,
			LogoutTime: e.LogoutAt,
			Status:     l.Derive(e, active, now),
		})
	}
	return views, nil
}

// HistoryByStatuses returns the ledger entries whose derived status is one
// of the given values. Open entries are stored as active but can derive to
// any status, so they are always fetched and filtered after derivation.
func (l *Ledger) HistoryByStatuses(ctx context.Context, statuses []session.Status) ([]session.HistoryView, error) {
	want := make(map[session.Status]bool, len(statuses))
	stored := make([]session.Status, 0, len(statuses)+1)
	for _, st := range statuses {
		want[st] = true
		stored = append(stored, st)
	}
	if !want[session.StatusActive] {
		stored = append(stored, session.StatusActive)
	}

	entries, err := l.store.ListByStatuses(ctx, stored)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	views := make([]session.HistoryView, 0, len(entries))
	for _, e := range entries {
		var active *session.ActiveSession
		if e.LogoutAt == nil {
			if sess, err := l.active.GetByUsername(ctx, e.Username); err == nil {
				active = sess
			}
		}
		status := l.Derive(e, active, now)
		if !want[status] {
			continue
		}
		views = append(views, session.HistoryView{
			Username:   e.Username,
			Role:       e.Role,
			LoginTime:  e.LoginAt,
			LogoutTime: e.LogoutAt,
			Status:     status,
		})
	}
	return views, nil
}

// Derive computes the live status of an entry given the current active
// session (nil when the username has none).
func (l *Ledger) Derive(e *session.HistoryEntry, active *session.ActiveSession, now time.Time) session.Status {
	return DeriveStatus(e, active, now, l.inactiveAfter, l.terminateAfter)
}

// DeriveStatus is the status state machine. ended and terminated are
// terminal; inactive is a soft display state that reverts to active as soon
// as activity resumes.
func DeriveStatus(e *session.HistoryEntry, active *session.ActiveSession, now time.Time, inactiveAfter, terminateAfter time.Duration) session.Status {
	// An explicit termination wins over everything.
	if e.Status == session.StatusTerminated {
		return session.StatusTerminated
	}
	// Closed entries keep their recorded transition.
	if e.LogoutAt != nil {
		return e.Status
	}
	// The registry disagreeing with an open entry means the session is gone
	// regardless of ledger bookkeeping.
	if active == nil || active.SessionID != e.SessionID {
		return session.StatusEnded
	}
	if now.Sub(active.LastActiveAt) > inactiveAfter {
		return session.StatusInactive
	}
	if now.Sub(e.LoginAt) > terminateAfter {
		return session.StatusTerminated
	}
	return session.StatusActive
}

// Reconcile closes open entries whose username no longer has a live
// session. Run at startup so the ledger and registry agree before traffic
// arrives. Returns the number of entries closed.
func (l *Ledger) Reconcile(ctx context.Context) (int, error) {
	open, err := l.store.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	now := time.Now()
	for _, e := range open {
		sess, err := l.active.GetByUsername(ctx, e.Username)
		if err == nil && sess.SessionID == e.SessionID {
			continue
		}
		if err := l.store.Close(ctx, e.SessionID, session.StatusEnded, now); err != nil {
			if !xerrors.Is(err, xerrors.ErrNotFound) {
				l.logger.Error("failed to reconcile history entry",
					zap.String("session_id", e.SessionID),
					zap.Error(err),
				)
			}
			continue
		}
		closed++
	}

	if closed > 0 {
		l.logger.Info("reconciled stale history entries", zap.Int("closed", closed))
	}
	return closed, nil
}
