package domain

import "time"

// RefreshToken is a single issued refresh credential. Only the HMAC digest of
// the plaintext is stored; TokenFamily groups successive rotations of one
// original login so that reuse of a rotated token can revoke the whole chain.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	TokenHash     string     `gorm:"size:128;uniqueIndex;not null" json:"-"`
	TokenFamily   string     `gorm:"size:64;index;not null" json:"-"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt     *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	RevokedReason *string    `gorm:"size:64" json:"revoked_reason,omitempty"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	IPAddress     string     `gorm:"size:64" json:"ip_address"`
	UserAgent     string     `gorm:"size:512" json:"user_agent"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Revoked reports whether the token has been revoked. A revoked token never
// transitions back to valid.
func (t *RefreshToken) Revoked() bool { return t.RevokedAt != nil }

func (t *RefreshToken) Expired(now time.Time) bool { return !t.ExpiresAt.After(now) }

// Revocation reasons recorded on refresh tokens.
const (
	RevokeReasonRotated       = "rotated"
	RevokeReasonReuseDetected = "reuse_detected"
	RevokeReasonLogout        = "logout"
	RevokeReasonPasswordReset = "password_reset"
)
