package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
	"github.com/ticketdesk/auth-service/internal/repository"
)

// In-memory repository fakes. Each guards its state with a mutex and returns
// copies, so tests can exercise the services without a database.

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: map[uint]*domain.User{}}
}

func (r *fakeUserRepo) add(u domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	r.users[u.ID] = &u
	copied := u
	return &copied
}

func (r *fakeUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*domain.User, error) {
	return r.findWhere(func(u *domain.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) FindByUsername(username string) (*domain.User, error) {
	return r.findWhere(func(u *domain.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) FindByLogin(identifier string) (*domain.User, error) {
	return r.findWhere(func(u *domain.User) bool {
		return u.Username == identifier || u.Email == identifier
	})
}

func (r *fakeUserRepo) findWhere(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repository.ErrDuplicateUser
		}
	}
	u.ID = r.nextID
	r.nextID++
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *fakeUserRepo) UpdatePasswordHash(userID uint, hash string) error {
	return r.mutate(userID, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *fakeUserRepo) SetActive(userID uint, active bool) error {
	return r.mutate(userID, func(u *domain.User) { u.IsActive = active })
}

func (r *fakeUserRepo) SetLastLogin(userID uint, at time.Time) error {
	return r.mutate(userID, func(u *domain.User) { u.LastLoginAt = &at })
}

func (r *fakeUserRepo) RecordFailedAttempt(userID uint, maxAttempts int, lockoutDuration time.Duration) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return 0, nil, repository.ErrUserNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := time.Now().UTC().Add(lockoutDuration)
		u.LockedUntil = &until
		copied := until
		return u.FailedLoginAttempts, &copied, nil
	}
	return u.FailedLoginAttempts, nil, nil
}

func (r *fakeUserRepo) ClearLockout(userID uint) error {
	return r.mutate(userID, func(u *domain.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (r *fakeUserRepo) mutate(userID uint, fn func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(u)
	return nil
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	nextID uint
	byHash map[string]*domain.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{nextID: 1, byHash: map[string]*domain.RefreshToken{}}
}

func (r *fakeTokenRepo) Create(t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHash[t.TokenHash]; ok {
		return errors.New("duplicate token hash")
	}
	t.ID = r.nextID
	r.nextID++
	copied := *t
	r.byHash[t.TokenHash] = &copied
	return nil
}

func (r *fakeTokenRepo) FindByHash(hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[hash]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTokenRepo) Rotate(oldHash string, next *domain.RefreshToken) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byHash[oldHash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrTokenNotFound
	}
	now := time.Now().UTC()
	reason := domain.RevokeReasonRotated
	t.RevokedAt = &now
	t.RevokedReason = &reason
	t.LastUsedAt = &now
	next.ID = r.nextID
	r.nextID++
	copied := *next
	r.byHash[next.TokenHash] = &copied
	rotated := *t
	return &rotated, nil
}

func (r *fakeTokenRepo) MarkReuseDetected(hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.byHash[hash]; ok {
		reason := domain.RevokeReasonReuseDetected
		t.RevokedReason = &reason
	}
	return nil
}

func (r *fakeTokenRepo) RevokeFamily(family, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, t := range r.byHash {
		if t.TokenFamily == family && t.RevokedAt == nil {
			t.RevokedAt = &now
			t.RevokedReason = &reason
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) RevokeAllForUser(userID uint, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, t := range r.byHash {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			t.RevokedReason = &reason
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) CleanupExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for hash, t := range r.byHash {
		if !t.ExpiresAt.After(time.Now()) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *fakeTokenRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.byHash {
		if t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*domain.UserSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{nextID: 1, sessions: map[uint]*domain.UserSession{}}
}

func (r *fakeSessionRepo) CreateWithEviction(s *domain.UserSession, maxActive int) ([]domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*domain.UserSession
	for _, existing := range r.sessions {
		if existing.UserID == s.UserID && existing.IsActive && existing.ExpiresAt.After(time.Now()) {
			active = append(active, existing)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	var evicted []domain.UserSession
	if maxActive > 0 && len(active) >= maxActive {
		now := time.Now().UTC()
		reason := domain.SessionEndMaxSessions
		for _, old := range active[:len(active)-maxActive+1] {
			old.IsActive = false
			old.EndReason = &reason
			old.EndedAt = &now
			evicted = append(evicted, *old)
		}
	}
	s.ID = r.nextID
	r.nextID++
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	copied := *s
	r.sessions[s.ID] = &copied
	return evicted, nil
}

func (r *fakeSessionRepo) FindByID(id uint) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) FindByToken(sessionToken string) (*domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.SessionToken == sessionToken {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrSessionNotFound
}

func (r *fakeSessionRepo) ListActiveByUserID(userID uint) ([]domain.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UserSession
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(time.Now()) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) Terminate(sessionID uint, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.IsActive {
		return false, nil
	}
	now := time.Now().UTC()
	s.IsActive = false
	s.EndReason = &reason
	s.EndedAt = &now
	return true, nil
}

func (r *fakeSessionRepo) TerminateAllForUser(userID uint, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, s := range r.sessions {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			s.EndReason = &reason
			s.EndedAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) TouchActivity(sessionID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.LastActivityAt = at
	}
	return nil
}

func (r *fakeSessionRepo) CleanupExpired() (int64, error) { return 0, nil }

type fakeResetRepo struct {
	mu     sync.Mutex
	nextID uint
	resets map[string]*domain.PasswordReset
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{nextID: 1, resets: map[string]*domain.PasswordReset{}}
}

func (r *fakeResetRepo) Create(p *domain.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	copied := *p
	r.resets[p.TokenHash] = &copied
	return nil
}

func (r *fakeResetRepo) Consume(hash string) (*domain.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.resets[hash]
	if !ok || p.IsUsed || !p.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrResetNotFound
	}
	p.IsUsed = true
	copied := *p
	return &copied, nil
}

func (r *fakeResetRepo) CleanupExpired() (int64, error) { return 0, nil }

type fakeAuditRepo struct {
	mu      sync.Mutex
	nextID  uint
	entries []domain.AuditLog
	// failNext makes the next N Append calls fail, for drop-path tests.
	failNext int
}

func newFakeAuditRepo() *fakeAuditRepo { return &fakeAuditRepo{nextID: 1} }

func (r *fakeAuditRepo) Append(e *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext > 0 {
		r.failNext--
		return errors.New("audit store unavailable")
	}
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now().UTC()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *fakeAuditRepo) ListByUser(userID uint, req repository.PageRequest) (repository.PageResult[domain.AuditLog], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.AuditLog
	for _, e := range r.entries {
		if e.UserID != nil && *e.UserID == userID {
			matched = append(matched, e)
		}
	}
	return repository.PageResult[domain.AuditLog]{
		Items: matched, Total: int64(len(matched)), Page: 1, PageSize: len(matched), TotalPages: 1,
	}, nil
}

func (r *fakeAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ActionType)
	}
	return out
}

func (r *fakeAuditRepo) hasAction(action domain.AuditAction) bool {
	for _, a := range r.actions() {
		if a == action {
			return true
		}
	}
	return false
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) last() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
