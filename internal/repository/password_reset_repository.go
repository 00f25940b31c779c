package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
)

var ErrResetNotFound = errors.New("password reset not found")

type PasswordResetRepository interface {
	Create(p *domain.PasswordReset) error
	// Consume marks the unused, unexpired reset matching hash as used and
	// returns it. The row is locked during the flip, so a reset token can be
	// consumed at most once.
	Consume(hash string) (*domain.PasswordReset, error)
	CleanupExpired() (int64, error)
}

type GormPasswordResetRepository struct{ db *gorm.DB }

func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &GormPasswordResetRepository{db: db}
}

func (r *GormPasswordResetRepository) Create(p *domain.PasswordReset) error {
	err := r.db.Create(p).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset", "create", "success")
	return nil
}

func (r *GormPasswordResetRepository) Consume(hash string) (*domain.PasswordReset, error) {
	var consumed *domain.PasswordReset
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var p domain.PasswordReset
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND is_used = ? AND expires_at > ?", hash, false, time.Now()).
			First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResetNotFound
			}
			return err
		}
		if err := tx.Model(&domain.PasswordReset{}).
			Where("id = ?", p.ID).
			Update("is_used", true).Error; err != nil {
			return err
		}
		p.IsUsed = true
		consumed = &p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrResetNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "password_reset", "consume", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "password_reset", "consume", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset", "consume", "success")
	return consumed, nil
}

func (r *GormPasswordResetRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.PasswordReset{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "password_reset", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "password_reset", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
