package moderation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/internal/recovery"
)

// memRecoveryStore is a map-backed recovery.Store for dispatcher tests.
type memRecoveryStore struct {
	mu      sync.Mutex
	records map[string]recovery.Record
}

func newMemRecoveryStore() *memRecoveryStore {
	return &memRecoveryStore{records: make(map[string]recovery.Record)}
}

func (s *memRecoveryStore) Create(ctx context.Context, rec recovery.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Token] = rec
	return nil
}

func (s *memRecoveryStore) Get(ctx context.Context, token string) (*recovery.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	if !ok {
		return nil, recovery.ErrNotFound
	}
	return &rec, nil
}

func (s *memRecoveryStore) Consume(ctx context.Context, token string, now time.Time) (*recovery.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[token]
	if !ok {
		return nil, recovery.ErrNotFound
	}
	if !rec.Restorable(now) {
		return nil, recovery.ErrExpired
	}
	delete(s.records, token)
	return &rec, nil
}

func (s *memRecoveryStore) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for token, rec := range s.records {
		if !rec.Restorable(now) {
			delete(s.records, token)
			removed++
		}
	}
	return removed, nil
}

func (s *memRecoveryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

type dispatcherFixture struct {
	store       *memStore
	recStore    *memRecoveryStore
	directory   *MockUserDirectory
	content     *MockContentStore
	dispatcher  *Dispatcher
	blockedIDs  []string
	inactiveIDs []string
	roleChanges map[string]Role
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		store:       newMemStore(),
		recStore:    newMemRecoveryStore(),
		roleChanges: make(map[string]Role),
	}

	f.directory = &MockUserDirectory{
		FindByIDFunc: func(ctx context.Context, id string) (*User, error) {
			return &User{ID: id, Name: "Test User", Email: id + "@example.com"}, nil
		},
		SetBlockedFunc: func(ctx context.Context, id string, blocked bool) error {
			if blocked {
				f.blockedIDs = append(f.blockedIDs, id)
			}
			return nil
		},
		SetActiveFunc: func(ctx context.Context, id string, active bool) error {
			if !active {
				f.inactiveIDs = append(f.inactiveIDs, id)
			}
			return nil
		},
		SetRoleFunc: func(ctx context.Context, id string, role Role) error {
			f.roleChanges[id] = role
			return nil
		},
	}

	f.content = &MockContentStore{
		FindByIDFunc: func(ctx context.Context, id string) ([]byte, error) {
			return []byte(`{"id":"` + id + `"}`), nil
		},
	}

	recoveryService := recovery.NewService(f.recStore, map[recovery.Kind]recovery.Reinserter{
		recovery.KindProject: f.content,
		recovery.KindMessage: f.content,
		recovery.KindChat:    f.content,
	})

	lc := NewLifecycle(f.store)
	f.dispatcher = NewDispatcher(f.store, lc, recoveryService, f.directory, map[TargetType]ContentStore{
		TargetProject: f.content,
		TargetComment: f.content,
		TargetChat:    f.content,
	})
	return f
}

func TestDispatcherDeniesWithoutAuditing(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionDeleteContent,
		ActorID:   "admin-1",
		ActorRole: RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, result.Outcome)
	assert.Contains(t, result.Reason, "not permitted")

	// Denials leave no audit trail and do not touch the report
	assert.Empty(t, f.store.audit)
	r, err := f.store.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status)
}

func TestDispatcherReviewWritesOneAuditEntry(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionReview,
		ActorID:   "admin-1",
		ActorRole: RoleAdmin,
		Notes:     "checking",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.True(t, result.Success)
	assert.False(t, result.CanBeReversed)
	assert.Equal(t, StatusReviewed, result.Report.Status)

	require.Len(t, f.store.audit, 1)
	entry := f.store.audit[0]
	assert.Equal(t, "admin-1", entry.ActorID)
	assert.Equal(t, "Test User", entry.ActorName)
	assert.Equal(t, string(ActionReview), entry.Action)
	assert.Equal(t, ActionTypeUpdate, entry.ActionType)
	assert.Equal(t, AuditTargetReport, entry.TargetType)
	assert.Equal(t, "r1", entry.TargetID)
	assert.Equal(t, "true", entry.Metadata["success"])
}

func TestDispatcherDeleteContentHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionDeleteContent,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.True(t, result.Success)
	assert.True(t, result.CanBeReversed)
	assert.NotEmpty(t, result.RestorationToken)

	// The report is closed with a note naming the soft-deleted target
	assert.Equal(t, StatusClosed, result.Report.Status)
	assert.Contains(t, result.Report.ResolutionNotes, "soft-deleted")

	// The recovery store holds the snapshot under the returned token
	rec, err := f.recStore.Get(ctx, result.RestorationToken)
	require.NoError(t, err)
	assert.Equal(t, recovery.KindProject, rec.Kind)
	assert.Equal(t, "proj-1", rec.OriginalID)
	assert.Equal(t, "offender-1", rec.OwnerUserID)

	require.Len(t, f.store.audit, 1)
	entry := f.store.audit[0]
	assert.Equal(t, ActionTypeDelete, entry.ActionType)
	assert.Equal(t, AuditTargetProject, entry.TargetType)
	assert.Equal(t, "proj-1", entry.TargetID)
}

func TestDispatcherAbsorbsDownstreamFailure(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	f.content.FindByIDFunc = func(ctx context.Context, id string) ([]byte, error) {
		return nil, errors.New("content service unavailable")
	}

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionDeleteContent,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.False(t, result.Success)
	assert.False(t, result.CanBeReversed)
	assert.Empty(t, result.RestorationToken)

	// The report still closes so the admin's decision is not lost
	assert.Equal(t, StatusClosed, result.Report.Status)
	assert.Contains(t, result.Report.ResolutionNotes, "Failed:")

	// The audit entry records the failure
	require.Len(t, f.store.audit, 1)
	assert.Equal(t, "false", f.store.audit[0].Metadata["success"])
}

func TestDispatcherAuditFailurePropagates(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)
	f.store.logActionErr = errors.New("audit store down")

	_, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionReview,
		ActorID:   "admin-1",
		ActorRole: RoleAdmin,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit")
}

func TestDispatcherBanUser(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionBanUser,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.True(t, result.Success)
	assert.True(t, result.CanBeReversed)
	assert.Equal(t, []string{"offender-1"}, f.blockedIDs)
	assert.Equal(t, StatusClosed, result.Report.Status)

	require.Len(t, f.store.audit, 1)
	entry := f.store.audit[0]
	assert.Equal(t, ActionTypeBlock, entry.ActionType)
	assert.Equal(t, AuditTargetUser, entry.TargetType)
	assert.Equal(t, "offender-1", entry.TargetID)
}

func TestDispatcherSuspendUser(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionSuspendUser,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"offender-1"}, f.inactiveIDs)
}

func TestDispatcherChangeRole(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionChangeRole,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
		NewRole:   RoleAdmin,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, RoleAdmin, f.roleChanges["offender-1"])

	require.Len(t, f.store.audit, 1)
	assert.Equal(t, ActionTypeRoleChange, f.store.audit[0].ActionType)
}

func TestDispatcherReportNotFound(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "missing",
		Action:    ActionReview,
		ActorID:   "admin-1",
		ActorRole: RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestDispatcherClosedReportIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusClosed)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionResolve,
		ActorID:   "admin-1",
		ActorRole: RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidTransition, result.Outcome)
	assert.Empty(t, f.store.audit)
}

func TestDispatcherReopenClosedReport(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusClosed)

	result, err := f.dispatcher.Perform(ctx, ActionRequest{
		ReportID:  "r1",
		Action:    ActionReopen,
		ActorID:   "super-1",
		ActorRole: RoleSuperAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, StatusReviewed, result.Report.Status)

	require.Len(t, f.store.audit, 1)
	assert.Equal(t, ActionTypeRestore, f.store.audit[0].ActionType)
}

func TestDispatcherRejectsNonDispatchableActions(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t)
	seedReport(t, f.store, StatusPending)

	for _, action := range []Action{ActionSubmitReport, ActionViewReports, Action("unknown")} {
		_, err := f.dispatcher.Perform(ctx, ActionRequest{
			ReportID:  "r1",
			Action:    action,
			ActorID:   "super-1",
			ActorRole: RoleSuperAdmin,
		})
		assert.Error(t, err, "action %s", action)
	}
}
