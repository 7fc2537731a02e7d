// internal/repository/postgres/history_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"panel-service/internal/domain/session"
	xerrors "panel-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type HistoryRepository struct {
	db *pgxpool.Pool
}

func NewHistoryRepository(db *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// EnsureSchema creates the ledger table if it does not exist yet.
func (r *HistoryRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS session_history (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			login_at TIMESTAMPTZ NOT NULL,
			logout_at TIMESTAMPTZ,
			status TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_session_history_username ON session_history (username);
		CREATE INDEX IF NOT EXISTS idx_session_history_session_id ON session_history (session_id);
	`
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure session_history schema: %w", err)
	}
	return nil
}

// Append inserts a new ledger entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *session.HistoryEntry) error {
	query := `
		INSERT INTO session_history (username, session_id, role, login_at, logout_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		entry.Username, entry.SessionID, entry.Role,
		entry.LoginAt, entry.LogoutAt, entry.Status,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	return nil
}

// Close stamps the open entry for a session with a logout time and final
// status. Returns ErrNotFound when no open entry matches.
func (r *HistoryRepository) Close(ctx context.Context, sessionID string, status session.Status, at time.Time) error {
	query := `
		UPDATE session_history
		SET logout_at = $2, status = $3
		WHERE session_id = $1 AND logout_at IS NULL
	`

	ct, err := r.db.Exec(ctx, query, sessionID, at, status)
	if err != nil {
		return fmt.Errorf("failed to close history entry: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// OpenByUsername returns the open (no logout timestamp) entry for a
// username, newest first if bookkeeping ever left more than one.
func (r *HistoryRepository) OpenByUsername(ctx context.Context, username string) (*session.HistoryEntry, error) {
	query := `
		SELECT id, username, session_id, role, login_at, logout_at, status
		FROM session_history
		WHERE username = $1 AND logout_at IS NULL
		ORDER BY login_at DESC
		LIMIT 1
	`

	entry, err := r.scanOne(r.db.QueryRow(ctx, query, username))
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// List returns all ledger entries, newest login first.
func (r *HistoryRepository) List(ctx context.Context) ([]*session.HistoryEntry, error) {
	query := `
		SELECT id, username, session_id, role, login_at, logout_at, status
		FROM session_history
		ORDER BY login_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListOpen returns every entry without a logout timestamp.
func (r *HistoryRepository) ListOpen(ctx context.Context) ([]*session.HistoryEntry, error) {
	query := `
		SELECT id, username, session_id, role, login_at, logout_at, status
		FROM session_history
		WHERE logout_at IS NULL
		ORDER BY login_at DESC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list open history: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ListByStatuses returns entries whose stored status is one of the given
// values.
func (r *HistoryRepository) ListByStatuses(ctx context.Context, statuses []session.Status) ([]*session.HistoryEntry, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	query := `
		SELECT id, username, session_id, role, login_at, logout_at, status
		FROM session_history
		WHERE status = ANY($1)
		ORDER BY login_at DESC
	`

	rows, err := r.db.Query(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("failed to list history by status: %w", err)
	}
	defer rows.Close()

	return r.scanAll(rows)
}

func (r *HistoryRepository) scanOne(row pgx.Row) (*session.HistoryEntry, error) {
	var entry session.HistoryEntry
	err := row.Scan(
		&entry.ID, &entry.Username, &entry.SessionID, &entry.Role,
		&entry.LoginAt, &entry.LogoutAt, &entry.Status,
	)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history entry: %w", err)
	}
	return &entry, nil
}

func (r *HistoryRepository) scanAll(rows pgx.Rows) ([]*session.HistoryEntry, error) {
	var entries []*session.HistoryEntry
	for rows.Next() {
		var entry session.HistoryEntry
		err := rows.Scan(
			&entry.ID, &entry.Username, &entry.SessionID, &entry.Role,
			&entry.LoginAt, &entry.LogoutAt, &entry.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
