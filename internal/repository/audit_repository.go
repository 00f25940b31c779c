package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
)

// AuditRepository is append-only. There are deliberately no update or delete
// operations.
type AuditRepository interface {
	Append(e *domain.AuditLog) error
	ListByUser(userID uint, req PageRequest) (PageResult[domain.AuditLog], error)
}

type GormAuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &GormAuditRepository{db: db} }

func (r *GormAuditRepository) Append(e *domain.AuditLog) error {
	err := r.db.Create(e).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "append", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit", "append", "success")
	return nil
}

func (r *GormAuditRepository) ListByUser(userID uint, req PageRequest) (PageResult[domain.AuditLog], error) {
	req = normalizePageRequest(req)
	result := PageResult[domain.AuditLog]{Page: req.Page, PageSize: req.PageSize}

	base := r.db.Model(&domain.AuditLog{}).Where("user_id = ?", userID)
	if err := base.Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "list_by_user", "error")
		return PageResult[domain.AuditLog]{}, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := base.Order("created_at DESC, id DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "list_by_user", "error")
		return PageResult[domain.AuditLog]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "audit", "list_by_user", "success")
	return result, nil
}
