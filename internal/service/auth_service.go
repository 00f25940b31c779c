package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/observability"
	"github.com/ticketdesk/auth-service/internal/repository"
	"github.com/ticketdesk/auth-service/internal/security"
)

const resetTokenBytes = 32

// RequestMeta carries the client attribution recorded on tokens, sessions and
// audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService orchestrates the authentication flows: registration, login with
// lockout, token rotation, logout and the password lifecycle. Each flow leaves
// an audit trail.
type AuthService struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	hasher   *security.PasswordHasher
	tokens   *TokenService
	sessions *SessionService
	lockout  *LockoutGuard
	audit    *AuditService
	mailer   Mailer
	logger   *slog.Logger

	pepper       string
	resetTTL     time.Duration
	emailTimeout time.Duration
}

func NewAuthService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	hasher *security.PasswordHasher,
	tokens *TokenService,
	sessions *SessionService,
	lockout *LockoutGuard,
	audit *AuditService,
	mailer Mailer,
	logger *slog.Logger,
	pepper string,
	resetTTL time.Duration,
	emailTimeout time.Duration,
) *AuthService {
	return &AuthService{
		users:        users,
		resets:       resets,
		hasher:       hasher,
		tokens:       tokens,
		sessions:     sessions,
		lockout:      lockout,
		audit:        audit,
		mailer:       mailer,
		logger:       logger,
		pepper:       pepper,
		resetTTL:     resetTTL,
		emailTimeout: emailTimeout,
	}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new viewer account. Duplicate checks name the colliding
// field; this intentionally reveals existence, unlike the forgot-password
// flow.
func (s *AuthService) Register(in RegisterInput, meta RequestMeta) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if len(username) < 3 || len(username) > 64 {
		return nil, fmt.Errorf("%w: username must be 3-64 characters", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}
	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleViewer,
		IsActive:     true,
	}
	if err := s.users.Create(user); err != nil {
		// A concurrent registration can still trip the unique index.
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	s.audit.Success(domain.AuditAccountCreated, &user.ID, meta.IP, "user registered")
	s.sendMailAsync(user.Email, "Welcome to TicketDesk",
		fmt.Sprintf("Hi %s, your account has been created.", user.Username))
	return user, nil
}

type LoginResult struct {
	User *domain.User
	Pair TokenPair
}

// Login authenticates a username-or-email credential. The lockout guard runs
// before any password comparison; the attempt that trips the lock still
// reports invalid credentials, and only subsequent attempts see the lock.
func (s *AuthService) Login(identifier, password string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.users.FindByLogin(strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthLogin("unknown_user")
			s.audit.Failure(domain.AuditLoginFailure, nil, meta.IP, domain.SeverityWarning,
				"unknown identifier")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.lockout.Check(user); err != nil {
		if errors.Is(err, ErrAccountLocked) {
			observability.RecordAuthLogin("locked")
			s.audit.Failure(domain.AuditLoginFailure, &user.ID, meta.IP, domain.SeverityWarning,
				"attempt while locked")
			return nil, ErrAccountLocked
		}
		return nil, err
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		locked, ferr := s.lockout.RegisterFailure(user)
		if ferr != nil {
			return nil, ferr
		}
		observability.RecordAuthLogin("bad_password")
		s.audit.Failure(domain.AuditLoginFailure, &user.ID, meta.IP, domain.SeverityWarning,
			"wrong password")
		if locked {
			s.audit.Failure(domain.AuditAccountLocked, &user.ID, meta.IP, domain.SeverityCritical,
				"failed attempt threshold reached")
		}
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		observability.RecordAuthLogin("inactive")
		s.audit.Failure(domain.AuditLoginFailure, &user.ID, meta.IP, domain.SeverityWarning,
			"account inactive")
		return nil, ErrAccountInactive
	}

	if err := s.lockout.RegisterSuccess(user); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.users.SetLastLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	pair, family, err := s.tokens.Issue(user, meta.IP, meta.UserAgent)
	if err != nil {
		return nil, err
	}
	_, evicted, err := s.sessions.Create(user, family, meta.IP, meta.UserAgent)
	if err != nil {
		return nil, err
	}
	for _, ev := range evicted {
		s.audit.Success(domain.AuditSessionTerminated, &user.ID, meta.IP,
			fmt.Sprintf("session %d evicted: %s", ev.ID, domain.SessionEndMaxSessions))
	}

	observability.RecordAuthLogin("success")
	s.audit.Success(domain.AuditLoginSuccess, &user.ID, meta.IP, "login")
	return &LoginResult{User: user, Pair: pair}, nil
}

// Refresh rotates a refresh token. Reuse of an already rotated token revokes
// the whole family and is audited as a critical event.
func (s *AuthService) Refresh(rawRefresh string, meta RequestMeta) (TokenPair, error) {
	res, err := s.tokens.Rotate(rawRefresh, meta.IP, meta.UserAgent)
	if err != nil {
		if errors.Is(err, ErrTokenReuseDetected) {
			observability.RecordAuthRefresh("reuse_detected")
			s.audit.Failure(domain.AuditTokenReuseDetected, &res.UserID, meta.IP, domain.SeverityCritical,
				"rotated refresh token replayed; family revoked")
			if terr := s.sessions.TerminateByToken(res.Family, domain.SessionEndRevoked); terr != nil {
				s.logger.Warn("terminate session after reuse detection", "error", terr)
			}
			return TokenPair{}, ErrInvalidToken
		}
		observability.RecordAuthRefresh("rejected")
		return TokenPair{}, err
	}

	if err := s.sessions.TouchByToken(res.Family); err != nil {
		s.logger.Warn("touch session activity", "error", err)
	}
	observability.RecordAuthRefresh("success")
	s.audit.Success(domain.AuditTokenRefresh, &res.UserID, meta.IP, "token rotated")
	return res.Pair, nil
}

// Logout ends the login. With a refresh token, only that token's family and
// session are revoked; without one, every token and session the user holds is.
func (s *AuthService) Logout(user *domain.User, rawRefresh string, meta RequestMeta) error {
	if rawRefresh != "" {
		family, err := s.tokens.RevokeRefresh(rawRefresh, user.ID, domain.RevokeReasonLogout)
		if err != nil {
			observability.RecordAuthLogout("rejected")
			return err
		}
		if err := s.sessions.TerminateByToken(family, domain.SessionEndLogout); err != nil {
			return err
		}
		observability.RecordAuthLogout("success")
		s.audit.Success(domain.AuditLogout, &user.ID, meta.IP, "logout")
		return nil
	}

	if _, err := s.tokens.RevokeAllForUser(user.ID, domain.RevokeReasonLogout); err != nil {
		return err
	}
	if _, err := s.sessions.TerminateAll(user.ID, domain.SessionEndLogout); err != nil {
		return err
	}
	observability.RecordAuthLogout("success")
	s.audit.Success(domain.AuditLogout, &user.ID, meta.IP, "logout all sessions")
	return nil
}

// ChangePassword verifies the current password before accepting the new one.
// Existing sessions stay alive; only the credential changes.
func (s *AuthService) ChangePassword(user *domain.User, current, next string, meta RequestMeta) error {
	if !s.hasher.Verify(current, user.PasswordHash) {
		s.audit.Failure(domain.AuditPasswordChange, &user.ID, meta.IP, domain.SeverityWarning,
			"current password mismatch")
		return ErrInvalidCredentials
	}
	if next == current {
		return fmt.Errorf("%w: new password must differ from the current one", ErrWeakPassword)
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(user.ID, hash); err != nil {
		return err
	}
	user.PasswordHash = hash
	s.audit.Success(domain.AuditPasswordChange, &user.ID, meta.IP, "password changed")
	return nil
}

// ForgotPassword always reports success so the endpoint cannot be used to
// probe which emails are registered. When the account exists and is active, a
// one-time reset token is issued and mailed.
func (s *AuthService) ForgotPassword(email string, meta RequestMeta) error {
	user, err := s.users.FindByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.audit.Record(AuditEvent{
				Action: domain.AuditPasswordResetRequest, IP: meta.IP,
				Status: domain.AuditFailure, Severity: domain.SeverityInfo,
				Detail: "unknown email",
			})
			return nil
		}
		return err
	}
	if !user.IsActive {
		s.audit.Failure(domain.AuditPasswordResetRequest, &user.ID, meta.IP, domain.SeverityInfo,
			"account inactive")
		return nil
	}

	raw, err := security.NewOpaqueToken(resetTokenBytes)
	if err != nil {
		return err
	}
	reset := &domain.PasswordReset{
		UserID:    user.ID,
		TokenHash: security.HashToken(raw, s.pepper),
		ExpiresAt: time.Now().UTC().Add(s.resetTTL),
	}
	if err := s.resets.Create(reset); err != nil {
		return err
	}

	s.audit.Success(domain.AuditPasswordResetRequest, &user.ID, meta.IP, "reset token issued")
	s.sendMailAsync(user.Email, "Password reset",
		fmt.Sprintf("Use this token to reset your password: %s\nIt expires in %s.", raw, s.resetTTL))
	return nil
}

// ResetPassword consumes a reset token and installs the new password. Every
// refresh token and session the user holds is revoked, and any lockout is
// cleared: the user has just proven control of the mailbox.
func (s *AuthService) ResetPassword(rawToken, next string, meta RequestMeta) error {
	// Validate the password first so a weak choice does not burn the token.
	if err := ValidatePassword(next); err != nil {
		return err
	}
	reset, err := s.resets.Consume(security.HashToken(rawToken, s.pepper))
	if err != nil {
		if errors.Is(err, repository.ErrResetNotFound) {
			s.audit.Record(AuditEvent{
				Action: domain.AuditPasswordResetComplete, IP: meta.IP,
				Status: domain.AuditFailure, Severity: domain.SeverityWarning,
				Detail: "invalid or expired reset token",
			})
			return ErrInvalidToken
		}
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(reset.UserID, hash); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllForUser(reset.UserID, domain.RevokeReasonPasswordReset); err != nil {
		return err
	}
	if _, err := s.sessions.TerminateAll(reset.UserID, domain.SessionEndPasswordReset); err != nil {
		return err
	}
	if err := s.users.ClearLockout(reset.UserID); err != nil {
		return err
	}

	s.audit.Success(domain.AuditPasswordResetComplete, &reset.UserID, meta.IP,
		"password reset; all sessions revoked")
	return nil
}

// ListSessions returns the caller's active sessions.
func (s *AuthService) ListSessions(user *domain.User) ([]domain.UserSession, error) {
	return s.sessions.ListActive(user.ID)
}

// TerminateSession ends one session on behalf of actor, subject to the
// ownership rule in SessionService.Terminate.
func (s *AuthService) TerminateSession(sessionID uint, actor *domain.User, meta RequestMeta) error {
	if err := s.sessions.Terminate(sessionID, actor, domain.SessionEndRevoked); err != nil {
		return err
	}
	s.audit.Success(domain.AuditSessionTerminated, &actor.ID, meta.IP,
		fmt.Sprintf("session %d terminated", sessionID))
	return nil
}

// AuditTrail lists recorded events for targetID. Users may read their own
// trail; managers and above may read anyone's.
func (s *AuthService) AuditTrail(actor *domain.User, targetID uint, page repository.PageRequest) (repository.PageResult[domain.AuditLog], error) {
	if actor.ID != targetID && !actor.Role.AtLeast(domain.RoleManager) {
		return repository.PageResult[domain.AuditLog]{}, ErrPermissionDenied
	}
	return s.audit.TrailForUser(targetID, page)
}

// User resolves the account behind verified access-token claims.
func (s *AuthService) User(claims *security.Claims) (*domain.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	return user, nil
}

// VerifyAccess exposes access-token validation for the auth middleware.
func (s *AuthService) VerifyAccess(raw string) (*security.Claims, error) {
	return s.tokens.VerifyAccess(raw)
}

func (s *AuthService) sendMailAsync(to, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.emailTimeout)
		defer cancel()
		if err := s.mailer.Send(ctx, to, subject, body); err != nil {
			s.logger.Warn("send email", "to", to, "subject", subject, "error", err)
		}
	}()
}
