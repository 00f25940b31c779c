package domain

import "time"

// UserSession is a live login session. It is separate from the refresh-token
// record: the session describes the login, the refresh token is the rotating
// credential attached to it.
type UserSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	SessionToken   string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	IPAddress      string     `gorm:"size:64" json:"ip_address"`
	UserAgent      string     `gorm:"size:512" json:"user_agent"`
	ExpiresAt      time.Time  `gorm:"index;not null" json:"expires_at"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndReason      *string    `gorm:"size:64" json:"end_reason,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Valid reports whether the session may still be used at now.
func (s *UserSession) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// Session end reasons.
const (
	SessionEndLogout        = "logout"
	SessionEndMaxSessions   = "max_sessions_exceeded"
	SessionEndRevoked       = "revoked"
	SessionEndPasswordReset = "password_reset"
	SessionEndExpired       = "expired"
)
