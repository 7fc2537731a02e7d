package user

import "time"

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
	Role     Role   `json:"role"`
}

type GrantServiceRequest struct {
	Service   string    `json:"service" binding:"required"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

// Info is the externally visible projection of a User (no secret material).
type Info struct {
	Username  string                  `json:"username"`
	Role      Role                    `json:"role"`
	JoinedAt  time.Time               `json:"joined_at"`
	CreatedBy string                  `json:"created_by,omitempty"`
	Services  []string                `json:"services"`
	Grants    map[string]ServiceGrant `json:"grants,omitempty"`
}

func (u *User) Info() Info {
	return Info{
		Username:  u.Username,
		Role:      u.Role,
		JoinedAt:  u.JoinedAt,
		CreatedBy: u.CreatedBy,
		Services:  u.Services,
		Grants:    u.Grants,
	}
}
