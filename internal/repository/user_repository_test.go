package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
)

func TestUserRepositoryCreateAndLookups(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{Username: "alice", Email: "Alice@Example.com", PasswordHash: "x", IsActive: true}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := repo.FindByEmail("ALICE@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.Email != "alice@example.com" {
		t.Errorf("email stored as %q, want lowercase", byEmail.Email)
	}
	if _, err := repo.FindByUsername("alice"); err != nil {
		t.Errorf("find by username: %v", err)
	}
	if _, err := repo.FindByLogin("alice"); err != nil {
		t.Errorf("find by login username: %v", err)
	}
	if _, err := repo.FindByLogin("alice@example.com"); err != nil {
		t.Errorf("find by login email: %v", err)
	}
	if _, err := repo.FindByID(999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing id: want ErrUserNotFound, got %v", err)
	}
}

func TestUserRepositoryDuplicateCreate(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	if err := repo.Create(&domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(&domain.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("duplicate username: want ErrDuplicateUser, got %v", err)
	}
}

func TestUserRepositoryFailedAttemptLocking(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	u := seedUser(t, db, "bob")

	for i := 1; i <= 2; i++ {
		attempts, lockedUntil, err := repo.RecordFailedAttempt(u.ID, 3, 30*time.Minute)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if attempts != i {
			t.Errorf("attempt %d: counter = %d", i, attempts)
		}
		if lockedUntil != nil {
			t.Errorf("attempt %d: locked too early", i)
		}
	}

	attempts, lockedUntil, err := repo.RecordFailedAttempt(u.ID, 3, 30*time.Minute)
	if err != nil {
		t.Fatalf("attempt 3: %v", err)
	}
	if attempts != 3 || lockedUntil == nil {
		t.Fatalf("threshold attempt: attempts=%d lockedUntil=%v", attempts, lockedUntil)
	}
	if !lockedUntil.After(time.Now()) {
		t.Error("lock expiry not in the future")
	}

	stored, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.Locked(time.Now()) {
		t.Error("user not locked after threshold")
	}

	if err := repo.ClearLockout(u.ID); err != nil {
		t.Fatalf("clear lockout: %v", err)
	}
	stored, _ = repo.FindByID(u.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Errorf("lockout not cleared: %+v", stored)
	}
}

func TestUserRepositoryColumnUpdates(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	u := seedUser(t, db, "carol")

	if err := repo.UpdatePasswordHash(u.ID, "new-hash"); err != nil {
		t.Fatalf("update hash: %v", err)
	}
	if err := repo.SetActive(u.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.SetLastLogin(u.ID, now); err != nil {
		t.Fatalf("set last login: %v", err)
	}

	stored, _ := repo.FindByID(u.ID)
	if stored.PasswordHash != "new-hash" || stored.IsActive || stored.LastLoginAt == nil {
		t.Errorf("updates not applied: %+v", stored)
	}

	if err := repo.UpdatePasswordHash(999, "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user update: want ErrUserNotFound, got %v", err)
	}
}
