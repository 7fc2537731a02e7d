package session

import "time"

// Status is the lifecycle state of a session history entry. Only active is
// non-terminal; inactive is a display-time derivation, never stored.
type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusEnded      Status = "ended"
	StatusTerminated Status = "terminated"
)

// ParseStatus maps a request string to a Status.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusActive, StatusInactive, StatusEnded, StatusTerminated:
		return Status(s), true
	}
	return "", false
}

// ActiveSession is the single live login record for a username. Its presence
// in the store is the source of truth for "is this user logged in".
type ActiveSession struct {
	SessionID    string    `json:"session_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	LoginAt      time.Time `json:"login_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// HistoryEntry is one login-to-logout span in the audit ledger. LogoutAt is
// nil while the span is open. Entries are mutated to close, never deleted.
type HistoryEntry struct {
	ID        int64      `json:"-"`
	Username  string     `json:"username"`
	SessionID string     `json:"session_id"`
	Role      string     `json:"role"`
	LoginAt   time.Time  `json:"login_time"`
	LogoutAt  *time.Time `json:"logout_time,omitempty"`
	Status    Status     `json:"status"`
}
