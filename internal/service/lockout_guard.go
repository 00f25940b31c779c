package service

import (
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
	"github.com/ticketdesk/auth-service/internal/repository"
)

// LockoutGuard tracks failed login attempts per account. An account is OPEN
// until the failure counter reaches maxAttempts, then LOCKED until
// lockoutDuration elapses. The guard is consulted before any password
// comparison.
type LockoutGuard struct {
	users           repository.UserRepository
	maxAttempts     int
	lockoutDuration time.Duration
}

func NewLockoutGuard(users repository.UserRepository, maxAttempts int, lockoutDuration time.Duration) *LockoutGuard {
	return &LockoutGuard{users: users, maxAttempts: maxAttempts, lockoutDuration: lockoutDuration}
}

// Check rejects the attempt while the lock is in effect. An expired lock
// transitions the account back to OPEN with the counter reset, and the
// attempt proceeds normally.
func (g *LockoutGuard) Check(user *domain.User) error {
	if user.LockedUntil == nil {
		return nil
	}
	if user.Locked(time.Now()) {
		return ErrAccountLocked
	}
	if err := g.users.ClearLockout(user.ID); err != nil {
		return err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}

// RegisterFailure counts a failed attempt. The increment is atomic per user
// row; concurrent failures never undercount. Returns true when this failure
// locked the account.
func (g *LockoutGuard) RegisterFailure(user *domain.User) (bool, error) {
	attempts, lockedUntil, err := g.users.RecordFailedAttempt(user.ID, g.maxAttempts, g.lockoutDuration)
	if err != nil {
		return false, err
	}
	user.FailedLoginAttempts = attempts
	user.LockedUntil = lockedUntil
	if lockedUntil != nil {
		observability.RecordAccountLockout()
		return true, nil
	}
	return false, nil
}

// RegisterSuccess resets the counter after a successful authentication.
func (g *LockoutGuard) RegisterSuccess(user *domain.User) error {
	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}
	if err := g.users.ClearLockout(user.ID); err != nil {
		return err
	}
	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	return nil
}
