package domain

import "time"

// PasswordReset is a one-time reset credential. IsUsed is monotonic: once a
// reset is consumed it can never become unused again.
type PasswordReset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	IsUsed    bool      `gorm:"not null;default:false" json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *PasswordReset) Usable(now time.Time) bool {
	return !p.IsUsed && p.ExpiresAt.After(now)
}
