package moderation

import (
	"context"
	"time"
)

// Store defines the persistence interface for reports and the audit log.
// Implementations must be safe for concurrent use.
type Store interface {
	// Reports. Reports are never deleted; they are retained for audit
	// completeness.
	CreateReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, error)
	HasReported(ctx context.Context, reporterID string, targetType TargetType, targetID string) (bool, error)

	// TransitionReport applies apply to the report iff its current status
	// still equals expect. It returns ErrNotFound if the report is absent
	// and ErrConflict if a concurrent writer changed the status since it
	// was read. apply mutates the report in place; the stored UpdatedAt is
	// refreshed by the implementation.
	TransitionReport(ctx context.Context, id string, expect Status, apply func(*Report)) (*Report, error)

	// Audit log. LogAction must never fail silently: a write failure
	// propagates so a moderation action is never considered complete
	// while unaudited. Entries are immutable once written.
	LogAction(ctx context.Context, entry AuditEntry) error
	ListAuditLog(ctx context.Context, query AuditQuery) ([]AuditEntry, error)
}

// UserDirectory is the user-directory collaborator contract. The engine
// consumes it for role resolution, bans, and suspensions; the directory's
// full schema is out of scope.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	SetBlocked(ctx context.Context, id string, blocked bool) error
	SetActive(ctx context.Context, id string, active bool) error
	SetRole(ctx context.Context, id string, role Role) error
}

// ContentStore is the contract a content collaborator (projects, comments,
// chats) exposes to the engine: locate a record by opaque id, mark it
// deleted, and reinsert a restored snapshot.
type ContentStore interface {
	// FindByID returns the full entity as an opaque snapshot blob.
	FindByID(ctx context.Context, id string) ([]byte, error)
	MarkDeleted(ctx context.Context, id, deletedByUserID string, expiresAt time.Time) error
	Reinsert(ctx context.Context, snapshot []byte) error
}
