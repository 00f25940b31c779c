package service

import (
	"errors"
	"testing"
	"time"

	"github.com/ticketdesk/auth-service/internal/domain"
)

func TestLockoutGuardLocksAtThreshold(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(domain.User{Username: "bob", Email: "bob@example.com", IsActive: true})
	guard := NewLockoutGuard(users, 3, 30*time.Minute)

	for i := 1; i <= 2; i++ {
		locked, err := guard.RegisterFailure(user)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if locked {
			t.Fatalf("locked too early at attempt %d", i)
		}
	}
	locked, err := guard.RegisterFailure(user)
	if err != nil {
		t.Fatalf("failure 3: %v", err)
	}
	if !locked {
		t.Fatal("third failure must lock")
	}
	if err := guard.Check(user); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("want ErrAccountLocked, got %v", err)
	}
}

func TestLockoutGuardExpiryResetsCounter(t *testing.T) {
	users := newFakeUserRepo()
	past := time.Now().UTC().Add(-time.Minute)
	user := users.add(domain.User{
		Username: "bob", Email: "bob@example.com", IsActive: true,
		FailedLoginAttempts: 3, LockedUntil: &past,
	})
	guard := NewLockoutGuard(users, 3, 30*time.Minute)

	if err := guard.Check(user); err != nil {
		t.Fatalf("expired lock must pass: %v", err)
	}
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		t.Errorf("counter not reset: attempts=%d locked_until=%v",
			user.FailedLoginAttempts, user.LockedUntil)
	}
	stored, _ := users.FindByID(user.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Error("reset not persisted")
	}
}

func TestLockoutGuardSuccessClearsPartialCount(t *testing.T) {
	users := newFakeUserRepo()
	user := users.add(domain.User{
		Username: "bob", Email: "bob@example.com", IsActive: true,
		FailedLoginAttempts: 2,
	})
	guard := NewLockoutGuard(users, 3, 30*time.Minute)

	if err := guard.RegisterSuccess(user); err != nil {
		t.Fatalf("register success: %v", err)
	}
	stored, _ := users.FindByID(user.ID)
	if stored.FailedLoginAttempts != 0 {
		t.Errorf("counter survived success: %d", stored.FailedLoginAttempts)
	}
}
