package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("duplicate user")
)

type UserRepository interface {
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	FindByUsername(username string) (*domain.User, error)
	// FindByLogin resolves a username-or-email credential identifier.
	FindByLogin(identifier string) (*domain.User, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
	UpdatePasswordHash(userID uint, hash string) error
	SetActive(userID uint, active bool) error
	SetLastLogin(userID uint, at time.Time) error
	// RecordFailedAttempt atomically increments the failure counter and
	// applies the lockout once the threshold is reached. It returns the new
	// counter value and the lock expiry, if one was set.
	RecordFailedAttempt(userID uint, maxAttempts int, lockoutDuration time.Duration) (int, *time.Time, error)
	// ClearLockout resets the failure counter and removes any lock.
	ClearLockout(userID uint) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	return r.findOne("find_by_email", "email = ?", strings.ToLower(email))
}

func (r *GormUserRepository) FindByUsername(username string) (*domain.User, error) {
	return r.findOne("find_by_username", "username = ?", username)
}

func (r *GormUserRepository) FindByLogin(identifier string) (*domain.User, error) {
	if strings.Contains(identifier, "@") {
		return r.findOne("find_by_login", "email = ? OR username = ?", strings.ToLower(identifier), identifier)
	}
	return r.findOne("find_by_login", "username = ?", identifier)
}

func (r *GormUserRepository) findOne(op string, query string, args ...any) (*domain.User, error) {
	var u domain.User
	err := r.db.Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", op, "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", op, "success")
	return &u, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	err := r.db.Create(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "user", "create", "duplicate")
			return ErrDuplicateUser
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Update(user *domain.User) error {
	err := r.db.Save(user).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update", "success")
	return nil
}

func (r *GormUserRepository) UpdatePasswordHash(userID uint, hash string) error {
	return r.updateColumns("update_password_hash", userID, map[string]any{"password_hash": hash})
}

func (r *GormUserRepository) SetActive(userID uint, active bool) error {
	return r.updateColumns("set_active", userID, map[string]any{"is_active": active})
}

func (r *GormUserRepository) SetLastLogin(userID uint, at time.Time) error {
	return r.updateColumns("set_last_login", userID, map[string]any{"last_login_at": at})
}

func (r *GormUserRepository) updateColumns(op string, userID uint, updates map[string]any) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", op, "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", op, "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", op, "success")
	return nil
}

func (r *GormUserRepository) RecordFailedAttempt(userID uint, maxAttempts int, lockoutDuration time.Duration) (int, *time.Time, error) {
	var (
		attempts    int
		lockedUntil *time.Time
	)
	// The counter update runs under a row lock so concurrent failures for the
	// same account never undercount.
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var u domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		attempts = u.FailedLoginAttempts + 1
		updates := map[string]any{"failed_login_attempts": attempts}
		if attempts >= maxAttempts {
			until := time.Now().UTC().Add(lockoutDuration)
			lockedUntil = &until
			updates["locked_until"] = until
		}
		return tx.Model(&domain.User{}).Where("id = ?", u.ID).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "record_failed_attempt", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "user", "record_failed_attempt", "error")
		}
		return 0, nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "record_failed_attempt", "success")
	return attempts, lockedUntil, nil
}

func (r *GormUserRepository) ClearLockout(userID uint) error {
	err := r.db.Model(&domain.User{}).Where("id = ?", userID).
		Updates(map[string]any{"failed_login_attempts": 0, "locked_until": nil}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "clear_lockout", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "clear_lockout", "success")
	return nil
}
