package repository

import (
	"fmt"
	"testing"

	"github.com/ticketdesk/auth-service/internal/domain"
)

func TestAuditAppendAndListPaged(t *testing.T) {
	repo := NewAuditRepository(newTestDB(t))
	uid := uint(1)
	other := uint(2)

	for i := 0; i < 25; i++ {
		if err := repo.Append(&domain.AuditLog{
			UserID:     &uid,
			ActionType: domain.AuditLoginSuccess,
			Status:     domain.AuditSuccess,
			Severity:   domain.SeverityInfo,
			Detail:     fmt.Sprintf("event %d", i),
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := repo.Append(&domain.AuditLog{
		UserID:     &other,
		ActionType: domain.AuditLoginFailure,
		Status:     domain.AuditFailure,
		Severity:   domain.SeverityWarning,
	}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	page1, err := repo.ListByUser(uid, PageRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if page1.Total != 25 || page1.TotalPages != 3 || len(page1.Items) != 10 {
		t.Errorf("page 1: total=%d pages=%d items=%d", page1.Total, page1.TotalPages, len(page1.Items))
	}

	page3, err := repo.ListByUser(uid, PageRequest{Page: 3, PageSize: 10})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page3.Items) != 5 {
		t.Errorf("page 3: items=%d, want 5", len(page3.Items))
	}
	for _, e := range page3.Items {
		if e.UserID == nil || *e.UserID != uid {
			t.Errorf("foreign entry in listing: %+v", e)
		}
	}
}

func TestAuditListDefaultsPagination(t *testing.T) {
	repo := NewAuditRepository(newTestDB(t))
	uid := uint(1)
	if err := repo.Append(&domain.AuditLog{UserID: &uid, ActionType: domain.AuditLogout, Status: domain.AuditSuccess, Severity: domain.SeverityInfo}); err != nil {
		t.Fatal(err)
	}

	res, err := repo.ListByUser(uid, PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Page != DefaultPage || res.PageSize != DefaultPageSize {
		t.Errorf("defaults not applied: page=%d size=%d", res.Page, res.PageSize)
	}
}
