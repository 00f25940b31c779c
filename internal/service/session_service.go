package service

import (
	"errors"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/repository"
)

// SessionService manages login sessions. Each session's SessionToken is the
// refresh-token family ID of the login that created it, which is how logout
// and rotation find the session belonging to a refresh chain.
type SessionService struct {
	sessions   repository.SessionRepository
	sessionTTL time.Duration
	maxActive  int
}

func NewSessionService(sessions repository.SessionRepository, sessionTTL time.Duration, maxActive int) *SessionService {
	return &SessionService{sessions: sessions, sessionTTL: sessionTTL, maxActive: maxActive}
}

// Create opens a session for a fresh login. When the user is already at the
// session cap, the oldest active sessions are terminated in the same
// transaction; the evicted sessions are returned for auditing.
func (s *SessionService) Create(user *domain.User, family, ip, userAgent string) (*domain.UserSession, []domain.UserSession, error) {
	now := time.Now().UTC()
	session := &domain.UserSession{
		UserID:         user.ID,
		SessionToken:   family,
		IPAddress:      ip,
		UserAgent:      userAgent,
		ExpiresAt:      now.Add(s.sessionTTL),
		IsActive:       true,
		LastActivityAt: now,
	}
	evicted, err := s.sessions.CreateWithEviction(session, s.maxActive)
	if err != nil {
		return nil, nil, err
	}
	return session, evicted, nil
}

// ListActive returns the user's live sessions, newest first.
func (s *SessionService) ListActive(userID uint) ([]domain.UserSession, error) {
	return s.sessions.ListActiveByUserID(userID)
}

// Terminate ends one session. The actor must own the session or hold the
// manager role; denied lookups report ErrNotFound rather than
// ErrPermissionDenied so the response does not confirm the session exists.
// Terminating an already ended session is a no-op.
func (s *SessionService) Terminate(sessionID uint, actor *domain.User, reason string) error {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotFound
		}
		return err
	}
	if session.UserID != actor.ID && !actor.Role.AtLeast(domain.RoleManager) {
		return ErrNotFound
	}
	if !session.IsActive {
		return nil
	}
	_, err = s.sessions.Terminate(sessionID, reason)
	return err
}

// TerminateByToken ends the session tied to a refresh-token family. Missing
// sessions are ignored: the family may predate session tracking or already be
// cleaned up.
func (s *SessionService) TerminateByToken(family, reason string) error {
	session, err := s.sessions.FindByToken(family)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if !session.IsActive {
		return nil
	}
	_, err = s.sessions.Terminate(session.ID, reason)
	return err
}

// TerminateAll ends every active session the user holds.
func (s *SessionService) TerminateAll(userID uint, reason string) (int64, error) {
	return s.sessions.TerminateAllForUser(userID, reason)
}

// TouchByToken records activity on the session tied to a refresh-token
// family, typically on token rotation.
func (s *SessionService) TouchByToken(family string) error {
	session, err := s.sessions.FindByToken(family)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.TouchActivity(session.ID, time.Now().UTC())
}
