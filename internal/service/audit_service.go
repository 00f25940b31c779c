package service

import (
	"log/slog"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
	"github.com/ticketdesk/auth-service/internal/repository"
)

// AuditService writes security events to the append-only audit log. Record
// never returns an error: a failed write is retried once and then dropped
// with a process-level warning, so audit problems cannot block an auth flow.
type AuditService struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

func NewAuditService(repo repository.AuditRepository, logger *slog.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

type AuditEvent struct {
	Action   domain.AuditAction
	UserID   *uint
	IP       string
	Status   domain.AuditStatus
	Severity domain.AuditSeverity
	Detail   string
}

func (s *AuditService) Record(ev AuditEvent) {
	entry := &domain.AuditLog{
		UserID:     ev.UserID,
		ActionType: ev.Action,
		IPAddress:  ev.IP,
		Status:     ev.Status,
		Severity:   ev.Severity,
		Detail:     ev.Detail,
	}
	err := s.repo.Append(entry)
	if err != nil {
		err = s.repo.Append(entry)
	}
	if err != nil {
		observability.RecordAuditDrop(string(ev.Action))
		s.logger.Warn("audit entry dropped",
			"action", ev.Action,
			"user_id", ev.UserID,
			"status", ev.Status,
			"error", err,
		)
	}
}

// Success and Failure are shorthands for the common cases.
func (s *AuditService) Success(action domain.AuditAction, userID *uint, ip, detail string) {
	s.Record(AuditEvent{Action: action, UserID: userID, IP: ip, Status: domain.AuditSuccess, Severity: domain.SeverityInfo, Detail: detail})
}

func (s *AuditService) Failure(action domain.AuditAction, userID *uint, ip string, severity domain.AuditSeverity, detail string) {
	s.Record(AuditEvent{Action: action, UserID: userID, IP: ip, Status: domain.AuditFailure, Severity: severity, Detail: detail})
}

// TrailForUser returns the recorded events for one user, newest first.
func (s *AuditService) TrailForUser(userID uint, req repository.PageRequest) (repository.PageResult[domain.AuditLog], error) {
	return s.repo.ListByUser(userID, req)
}
