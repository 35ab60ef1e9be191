package model

import "time"

// Role is a project-scoped permission level.  Gate checks compare roles by
// set membership only; there is no implicit ordering.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleProjectManager Role = "PROJECT_MANAGER"
	RoleLead           Role = "LEAD"
	RoleMember         Role = "MEMBER"
	RoleUser           Role = "USER"
)

// Roles lists every role in descending privilege.
var Roles = []Role{RoleAdmin, RoleProjectManager, RoleLead, RoleMember, RoleUser}

// ParseRole reports whether s names a known role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Membership mirrors the `project_members` table.  (UserID, ProjectID) is
// unique.
type Membership struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProjectID string    `json:"projectId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MemberView is a membership joined with the member's public user fields,
// as returned by member listings.
type MemberView struct {
	Membership
	Name  string `json:"name"`
	Email string `json:"email"`
}
