package moderation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is a map-backed Store with real conditional-update semantics,
// shared by the lifecycle and dispatcher tests.
type memStore struct {
	mu      sync.Mutex
	reports map[string]Report
	audit   []AuditEntry

	logActionErr error
}

func newMemStore() *memStore {
	return &memStore{reports: make(map[string]Report)}
}

func (s *memStore) CreateReport(ctx context.Context, report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

func (s *memStore) GetReport(ctx context.Context, id string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	return &r, nil
}

func (s *memStore) ListReports(ctx context.Context, filter ReportFilter) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Report
	for _, r := range s.reports {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) HasReported(ctx context.Context, reporterID string, targetType TargetType, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ReporterID == reporterID && r.TargetType == targetType && r.TargetID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) TransitionReport(ctx context.Context, id string, expect Status, apply func(*Report)) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if r.Status != expect {
		return nil, fmt.Errorf("report %s is %s, expected %s: %w", id, r.Status, expect, ErrConflict)
	}
	apply(&r)
	r.UpdatedAt = time.Now()
	s.reports[id] = r
	return &r, nil
}

func (s *memStore) LogAction(ctx context.Context, entry AuditEntry) error {
	if s.logActionErr != nil {
		return s.logActionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *memStore) ListAuditLog(ctx context.Context, query AuditQuery) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out, nil
}

func seedReport(t *testing.T, store *memStore, status Status) Report {
	t.Helper()
	report := Report{
		ID:             "r1",
		ReporterID:     "reporter-1",
		ReportedUserID: "offender-1",
		TargetType:     TargetProject,
		TargetID:       "proj-1",
		Reason:         ReasonSpam,
		Status:         status,
		Priority:       PriorityMedium,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, store.CreateReport(context.Background(), report))
	return report
}

func TestLifecycleReview(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	updated, err := lc.Review(ctx, "r1", "admin-1", "looking into it")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, updated.Status)
	assert.Equal(t, "admin-1", updated.HandledBy)
	assert.Equal(t, "looking into it", updated.ResolutionNotes)
}

func TestLifecycleAssignDefaultsToActor(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	updated, err := lc.Assign(ctx, "r1", "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, updated.Status)
	assert.Equal(t, "admin-1", updated.HandledBy)

	// Reassignment to another admin stays in reviewed
	updated, err = lc.Assign(ctx, "r1", "admin-1", "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-2", updated.HandledBy)
}

func TestLifecycleResolveClosesWithResolution(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	updated, err := lc.Resolve(ctx, "r1", "admin-1", "cleaned up")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, updated.Status)
	assert.Equal(t, "admin-1", updated.ResolvedBy)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, "cleaned up", updated.ResolutionNotes)
}

func TestLifecycleDirectCloseFromPending(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	// pending -> closed without passing through reviewed
	updated, err := lc.Reject(ctx, "r1", "admin-1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, updated.Status)
	assert.Equal(t, "Report rejected", updated.ResolutionNotes)
}

func TestLifecycleClosedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusClosed)
	lc := NewLifecycle(store)

	_, err := lc.Review(ctx, "r1", "admin-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = lc.Resolve(ctx, "r1", "admin-1", "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = lc.Escalate(ctx, "r1", "admin-1", "super-1", "bad")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycleReopen(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	lc := NewLifecycle(store)

	report := seedReport(t, store, StatusClosed)
	report.ResolvedBy = "admin-1"
	now := time.Now()
	report.ResolvedAt = &now
	require.NoError(t, store.CreateReport(ctx, report))

	updated, err := lc.Reopen(ctx, "r1", "super-1", "new evidence")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, updated.Status)
	assert.Equal(t, "super-1", updated.HandledBy)
	// Prior resolution fields are history, not erased
	assert.Equal(t, "admin-1", updated.ResolvedBy)
	assert.NotNil(t, updated.ResolvedAt)
}

func TestLifecycleReopenRequiresClosed(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	_, err := lc.Reopen(ctx, "r1", "super-1", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycleEscalateStampsFields(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	updated, err := lc.Escalate(ctx, "r1", "admin-1", "super-1", "needs super admin")
	require.NoError(t, err)
	assert.Equal(t, StatusReviewed, updated.Status)
	assert.Equal(t, "super-1", updated.EscalatedTo)
	assert.Equal(t, "needs super admin", updated.EscalationReason)
	require.NotNil(t, updated.EscalatedAt)
}

func TestLifecycleConflictOnConcurrentTransition(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedReport(t, store, StatusPending)
	lc := NewLifecycle(store)

	// Simulate a racing writer that closed the report after our read by
	// wrapping the store with a stale expectation.
	stale := &MockStore{
		GetReportFunc: func(ctx context.Context, id string) (*Report, error) {
			r, err := store.GetReport(ctx, id)
			if err != nil {
				return nil, err
			}
			// The other writer wins between our read and our write.
			_, terr := store.TransitionReport(ctx, id, r.Status, func(rr *Report) {
				rr.Status = StatusClosed
			})
			require.NoError(t, terr)
			return r, nil
		},
		TransitionReportFunc: store.TransitionReport,
	}

	_, err := NewLifecycle(stale).Review(ctx, "r1", "admin-1", "")
	assert.ErrorIs(t, err, ErrConflict)

	// The winning transition stands
	r, err := lc.store.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, r.Status)
}

func TestLifecycleNotFound(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(newMemStore())

	_, err := lc.Review(ctx, "missing", "admin-1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
