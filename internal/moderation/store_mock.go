package moderation

import (
	"context"
	"time"
)

// MockStore is a mock implementation of the Store interface for testing.
// Uses function fields to allow tests to inject custom behavior.
type MockStore struct {
	CreateReportFunc     func(ctx context.Context, report Report) error
	GetReportFunc        func(ctx context.Context, id string) (*Report, error)
	ListReportsFunc      func(ctx context.Context, filter ReportFilter) ([]Report, error)
	HasReportedFunc      func(ctx context.Context, reporterID string, targetType TargetType, targetID string) (bool, error)
	TransitionReportFunc func(ctx context.Context, id string, expect Status, apply func(*Report)) (*Report, error)
	LogActionFunc        func(ctx context.Context, entry AuditEntry) error
	ListAuditLogFunc     func(ctx context.Context, query AuditQuery) ([]AuditEntry, error)
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) CreateReport(ctx context.Context, report Report) error {
	if m.CreateReportFunc != nil {
		return m.CreateReportFunc(ctx, report)
	}
	return nil
}

func (m *MockStore) GetReport(ctx context.Context, id string) (*Report, error) {
	if m.GetReportFunc != nil {
		return m.GetReportFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	if m.ListReportsFunc != nil {
		return m.ListReportsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockStore) HasReported(ctx context.Context, reporterID string, targetType TargetType, targetID string) (bool, error) {
	if m.HasReportedFunc != nil {
		return m.HasReportedFunc(ctx, reporterID, targetType, targetID)
	}
	return false, nil
}

func (m *MockStore) TransitionReport(ctx context.Context, id string, expect Status, apply func(*Report)) (*Report, error) {
	if m.TransitionReportFunc != nil {
		return m.TransitionReportFunc(ctx, id, expect, apply)
	}
	return nil, ErrNotFound
}

func (m *MockStore) LogAction(ctx context.Context, entry AuditEntry) error {
	if m.LogActionFunc != nil {
		return m.LogActionFunc(ctx, entry)
	}
	return nil
}

func (m *MockStore) ListAuditLog(ctx context.Context, query AuditQuery) ([]AuditEntry, error) {
	if m.ListAuditLogFunc != nil {
		return m.ListAuditLogFunc(ctx, query)
	}
	return nil, nil
}

// MockUserDirectory is a mock implementation of UserDirectory for testing.
type MockUserDirectory struct {
	FindByIDFunc    func(ctx context.Context, id string) (*User, error)
	FindByEmailFunc func(ctx context.Context, email string) (*User, error)
	SetBlockedFunc  func(ctx context.Context, id string, blocked bool) error
	SetActiveFunc   func(ctx context.Context, id string, active bool) error
	SetRoleFunc     func(ctx context.Context, id string, role Role) error
}

var _ UserDirectory = (*MockUserDirectory)(nil)

func (m *MockUserDirectory) FindByID(ctx context.Context, id string) (*User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockUserDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, email)
	}
	return nil, ErrNotFound
}

func (m *MockUserDirectory) SetBlocked(ctx context.Context, id string, blocked bool) error {
	if m.SetBlockedFunc != nil {
		return m.SetBlockedFunc(ctx, id, blocked)
	}
	return nil
}

func (m *MockUserDirectory) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	return nil
}

func (m *MockUserDirectory) SetRole(ctx context.Context, id string, role Role) error {
	if m.SetRoleFunc != nil {
		return m.SetRoleFunc(ctx, id, role)
	}
	return nil
}

// MockContentStore is a mock implementation of ContentStore for testing.
type MockContentStore struct {
	FindByIDFunc    func(ctx context.Context, id string) ([]byte, error)
	MarkDeletedFunc func(ctx context.Context, id, deletedByUserID string, expiresAt time.Time) error
	ReinsertFunc    func(ctx context.Context, snapshot []byte) error
}

var _ ContentStore = (*MockContentStore)(nil)

func (m *MockContentStore) FindByID(ctx context.Context, id string) ([]byte, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockContentStore) MarkDeleted(ctx context.Context, id, deletedByUserID string, expiresAt time.Time) error {
	if m.MarkDeletedFunc != nil {
		return m.MarkDeletedFunc(ctx, id, deletedByUserID, expiresAt)
	}
	return nil
}

func (m *MockContentStore) Reinsert(ctx context.Context, snapshot []byte) error {
	if m.ReinsertFunc != nil {
		return m.ReinsertFunc(ctx, snapshot)
	}
	return nil
}
