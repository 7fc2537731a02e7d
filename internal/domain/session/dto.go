package session

import "time"

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

type LoginResponse struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role"`
}

type ValidateRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// Identity is what validate resolves a token to.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TerminateRequest identifies a session by either half of the pair.
type TerminateRequest struct {
	Username  string `json:"username,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// View is the per-user entry of the active sessions listing.
type View struct {
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	LoginTime time.Time `json:"loginTime"`
}

// HistoryView is one row of the session history listing with its live,
// read-time derived status.
type HistoryView struct {
	Username   string     `json:"username"`
	Role       string     `json:"role"`
	LoginTime  time.Time  `json:"loginTime"`
	LogoutTime *time.Time `json:"logoutTime,omitempty"`
	Status     Status     `json:"status"`
}
