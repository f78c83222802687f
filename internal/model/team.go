package model

import (
	"strings"
	"time"
)

// Team roles, in decreasing order of privilege.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// NormalizeRole lowercases r and reports whether it is a known role.
func NormalizeRole(r string) (string, bool) {
	r = strings.ToLower(strings.TrimSpace(r))
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return r, true
	}
	return "", false
}

type Team struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TeamMember struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanManage reports whether the member may administer loads, documents and reminders.
func (m *TeamMember) CanManage() bool {
	return m.Role == RoleAdmin || m.Role == RoleManager
}

// TeamInvite is a pending invitation. The row is deleted once the invite is accepted.
type TeamInvite struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Token     string    `json:"-"`
	InvitedBy *int64    `json:"invited_by"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
