package entity

import (
	"time"
)

// RoleAdministrator is the role allowed to delete accounts and to see
// administrator records in listings.
const RoleAdministrator = "administrator"

// DefaultAvatar is assigned to every freshly created account until the user
// uploads a picture of their own.
const DefaultAvatar = "avatar_default.png"

// User is the aggregate root of the back-office staff directory.
// Password holds a SHA-256 hex digest, never plaintext.
// Deletion is logical: Deleted flips to true and the row stays in place,
// with username uniqueness scoped to non-deleted rows.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar"`
	Email     string    `json:"email,omitempty"`
	Deleted   bool      `json:"-"`
	DeletedAt time.Time `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdministrator reports whether the user holds the administrative role.
func (u *User) IsAdministrator() bool {
	return u.Role == RoleAdministrator
}
