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

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	// CreateWithEviction inserts the session and, in the same transaction,
	// terminates the oldest active sessions so the user never holds more than
	// maxActive. Evicted sessions are returned for auditing.
	CreateWithEviction(s *domain.UserSession, maxActive int) ([]domain.UserSession, error)
	FindByID(id uint) (*domain.UserSession, error)
	FindByToken(sessionToken string) (*domain.UserSession, error)
	ListActiveByUserID(userID uint) ([]domain.UserSession, error)
	Terminate(sessionID uint, reason string) (bool, error)
	TerminateAllForUser(userID uint, reason string) (int64, error)
	TouchActivity(sessionID uint, at time.Time) error
	CleanupExpired() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) CreateWithEviction(s *domain.UserSession, maxActive int) ([]domain.UserSession, error) {
	var evicted []domain.UserSession
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var active []domain.UserSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND is_active = ? AND expires_at > ?", s.UserID, true, time.Now()).
			Order("created_at ASC, id ASC").
			Find(&active).Error; err != nil {
			return err
		}
		if maxActive > 0 && len(active) >= maxActive {
			now := time.Now().UTC()
			reason := domain.SessionEndMaxSessions
			overflow := active[:len(active)-maxActive+1]
			for i := range overflow {
				if err := tx.Model(&domain.UserSession{}).
					Where("id = ?", overflow[i].ID).
					Updates(map[string]any{"is_active": false, "end_reason": reason, "ended_at": now}).Error; err != nil {
					return err
				}
				overflow[i].IsActive = false
				overflow[i].EndReason = &reason
				overflow[i].EndedAt = &now
				evicted = append(evicted, overflow[i])
			}
		}
		return tx.Create(s).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create_with_eviction", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create_with_eviction", "success")
	return evicted, nil
}

func (r *GormSessionRepository) FindByID(id uint) (*domain.UserSession, error) {
	return r.findOne("find_by_id", "id = ?", id)
}

func (r *GormSessionRepository) FindByToken(sessionToken string) (*domain.UserSession, error) {
	return r.findOne("find_by_token", "session_token = ?", sessionToken)
}

func (r *GormSessionRepository) findOne(op string, query string, args ...any) (*domain.UserSession, error) {
	var s domain.UserSession
	err := r.db.Where(query, args...).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", op, "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", op, "success")
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByUserID(userID uint) ([]domain.UserSession, error) {
	var sessions []domain.UserSession
	err := r.db.Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_user_id", "success")
	return sessions, nil
}

func (r *GormSessionRepository) Terminate(sessionID uint, reason string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.UserSession{}).
		Where("id = ? AND is_active = ?", sessionID, true).
		Updates(map[string]any{"is_active": false, "end_reason": reason, "ended_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "terminate", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "terminate", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) TerminateAllForUser(userID uint, reason string) (int64, error) {
	now := time.Now().UTC()
	res := r.db.Model(&domain.UserSession{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]any{"is_active": false, "end_reason": reason, "ended_at": now})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "terminate_all_for_user", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "terminate_all_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) TouchActivity(sessionID uint, at time.Time) error {
	err := r.db.Model(&domain.UserSession{}).
		Where("id = ?", sessionID).
		Update("last_activity_at", at).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "touch_activity", "success")
	return nil
}

func (r *GormSessionRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.UserSession{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
