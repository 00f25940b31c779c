package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is an ordered privilege level. Higher values carry every capability of
// the levels below them.
type Role int

const (
	RoleViewer   Role = 0
	RoleReporter Role = 1
	RoleAgent    Role = 2
	RoleTeamLead Role = 3
	RoleManager  Role = 4
	RoleAdmin    Role = 5
)

var roleNames = map[Role]string{
	RoleViewer:   "viewer",
	RoleReporter: "reporter",
	RoleAgent:    "agent",
	RoleTeamLead: "team_lead",
	RoleManager:  "manager",
	RoleAdmin:    "admin",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// AtLeast reports whether the role carries the privileges of min.
func (r Role) AtLeast(min Role) bool { return r >= min }

func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == strings.ToLower(strings.TrimSpace(s)) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role: %q", s)
}

type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Username            string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email               string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash        string     `gorm:"size:128;not null" json:"-"`
	Role                Role       `gorm:"not null;default:0" json:"role"`
	IsActive            bool       `gorm:"not null;default:true" json:"is_active"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Locked reports whether the account lock is still in effect at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
