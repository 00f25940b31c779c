package domain

import "time"

// AuditAction enumerates the security-relevant events the service records.
type AuditAction string

const (
	AuditLoginSuccess          AuditAction = "LOGIN_SUCCESS"
	AuditLoginFailure          AuditAction = "LOGIN_FAILURE"
	AuditLogout                AuditAction = "LOGOUT"
	AuditAccountCreated        AuditAction = "ACCOUNT_CREATED"
	AuditAccountLocked         AuditAction = "ACCOUNT_LOCKED"
	AuditPasswordChange        AuditAction = "PASSWORD_CHANGE"
	AuditPasswordResetRequest  AuditAction = "PASSWORD_RESET_REQUEST"
	AuditPasswordResetComplete AuditAction = "PASSWORD_RESET_COMPLETE"
	AuditTokenRefresh          AuditAction = "TOKEN_REFRESH"
	AuditTokenReuseDetected    AuditAction = "TOKEN_REUSE_DETECTED"
	AuditSessionTerminated     AuditAction = "SESSION_TERMINATED"
)

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "INFO"
	SeverityWarning  AuditSeverity = "WARNING"
	SeverityCritical AuditSeverity = "CRITICAL"
)

// AuditLog is an append-only record. Rows are created and never mutated or
// deleted.
type AuditLog struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	UserID     *uint         `gorm:"index" json:"user_id,omitempty"`
	ActionType AuditAction   `gorm:"size:64;index;not null" json:"action_type"`
	IPAddress  string        `gorm:"size:64" json:"ip_address"`
	Status     AuditStatus   `gorm:"size:16;not null" json:"status"`
	Severity   AuditSeverity `gorm:"size:16;not null" json:"severity"`
	Detail     string        `gorm:"size:512" json:"detail,omitempty"`
	CreatedAt  time.Time     `gorm:"index" json:"created_at"`
}
