package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role gates what a user may see and moderate.
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole maps a case-insensitive role name to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Privileged reports whether the role may see and moderate hidden content.
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User represents a forum member. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Email        string    `gorm:"size:255" json:"email"`
	Image        string    `gorm:"size:512" json:"image"`
	Role         Role      `gorm:"size:16;not null;default:'USER'" json:"role"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Provider     string    `gorm:"size:32;index:idx_users_provider" json:"provider"`
	ProviderID   string    `gorm:"size:255;index:idx_users_provider" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BeforeCreate fills the role for rows created without one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
