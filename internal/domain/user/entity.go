package user

import "time"

// Role determines what a logged-in account may do. Resellers manage only
// the users they created; admins manage everything.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReseller Role = "reseller"
	RoleUser     Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReseller, RoleUser:
		return true
	}
	return false
}

// ServiceGrant records when access to a named service was granted and when
// it lapses.
type ServiceGrant struct {
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// User is the durable identity record. SecretHash holds a bcrypt hash of the
// login secret. CreatedBy is set when a reseller provisions the account.
type User struct {
	Username   string                  `json:"username"`
	SecretHash string                  `json:"secret_hash"`
	Role       Role                    `json:"role"`
	JoinedAt   time.Time               `json:"joined_at"`
	CreatedBy  string                  `json:"created_by,omitempty"`
	Services   []string                `json:"services"`
	Grants     map[string]ServiceGrant `json:"grants,omitempty"`
}

// Grant adds or refreshes access to a service.
func (u *User) Grant(service string, expiresAt time.Time) {
	if u.Grants == nil {
		u.Grants = make(map[string]ServiceGrant)
	}
	if _, exists := u.Grants[service]; !exists {
		u.Services = append(u.Services, service)
	}
	u.Grants[service] = ServiceGrant{GrantedAt: time.Now(), ExpiresAt: expiresAt}
}

// Revoke removes access to a service. Returns false if the user never had it.
func (u *User) Revoke(service string) bool {
	if _, ok := u.Grants[service]; !ok {
		return false
	}
	delete(u.Grants, service)
	for i, s := range u.Services {
		if s == service {
			u.Services = append(u.Services[:i], u.Services[i+1:]...)
			break
		}
	}
	return true
}

// HasService reports whether the user holds an unexpired grant.
func (u *User) HasService(service string, now time.Time) bool {
	g, ok := u.Grants[service]
	if !ok {
		return false
	}
	return g.ExpiresAt.IsZero() || now.Before(g.ExpiresAt)
}
