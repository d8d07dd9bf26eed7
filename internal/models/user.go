package models

import (
	"time"
)

const (
	// RoleUser is the role assigned to every authenticated user on first login
	RoleUser = "user"
)

// User represents a user in the system. The ID is the stable subject
// identifier asserted by the identity provider and never changes.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole reports whether the user holds the given role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
