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

var ErrTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository interface {
	Create(t *domain.RefreshToken) error
	FindByHash(hash string) (*domain.RefreshToken, error)
	// Rotate revokes the token identified by oldHash and persists the
	// replacement in one transaction. The old row is locked for the duration,
	// so at most one concurrent refresh can succeed with the same token.
	Rotate(oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error)
	MarkReuseDetected(hash string) error
	RevokeFamily(family, reason string) (int64, error)
	RevokeAllForUser(userID uint, reason string) (int64, error)
	CleanupExpired() (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(t *domain.RefreshToken) error {
	err := r.db.Create(t).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "create", "success")
	return nil
}

func (r *GormRefreshTokenRepository) FindByHash(hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.Where("token_hash = ?", hash).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "not_found")
			return nil, ErrTokenNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "find_by_hash", "success")
	return &t, nil
}

func (r *GormRefreshTokenRepository) Rotate(oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	var rotated *domain.RefreshToken
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t domain.RefreshToken
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND revoked_at IS NULL AND expires_at > ?", oldHash, time.Now()).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		now := time.Now().UTC()
		reason := domain.RevokeReasonRotated
		if err := tx.Model(&domain.RefreshToken{}).
			Where("id = ?", t.ID).
			Updates(map[string]any{"revoked_at": now, "revoked_reason": reason, "last_used_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		t.RevokedAt = &now
		t.RevokedReason = &reason
		t.LastUsedAt = &now
		rotated = &t
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "rotate", "success")
	return rotated, nil
}

func (r *GormRefreshTokenRepository) MarkReuseDetected(hash string) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.RefreshToken{}).
		Where("token_hash = ?", hash).
		Updates(map[string]any{"revoked_reason": domain.RevokeReasonReuseDetected, "last_used_at": now}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "mark_reuse_detected", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "mark_reuse_detected", "success")
	return nil
}

func (r *GormRefreshTokenRepository) RevokeFamily(family, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("token_family = ? AND revoked_at IS NULL", family).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_family", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_family", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) RevokeAllForUser(userID uint, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Updates(map[string]any{"revoked_at": now, "revoked_reason": reason})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "revoke_all_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormRefreshTokenRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.RefreshToken{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "refresh_token", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
