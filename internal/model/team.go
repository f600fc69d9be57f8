package model

import "time"

type Role string

const (
	RoleUndefined Role = ""
	RoleOwner     Role = "owner"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleMember
}

type Team struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description,omitempty"`
	CreatedAt   *time.Time    `json:"created_at,omitempty"`
	Members     []*TeamMember `json:"members,omitempty"`
}

type TeamMember struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
