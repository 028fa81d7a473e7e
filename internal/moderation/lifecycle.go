package moderation

import (
	"context"
	"fmt"
	"time"
)

// Lifecycle owns the report status state machine:
//
//	pending -> reviewed -> closed
//	pending ----------------^          (direct close is permitted)
//	closed -> reviewed                 (reopen, super-admin only)
//
// Transition methods never perform permission checks; that is the
// Dispatcher's job. They do enforce the machine's own terminality
// invariant: a closed report rejects every transition except Reopen with
// ErrInvalidTransition. All writes go through Store.TransitionReport,
// keyed on the previously read status, so a stale writer loses the race
// with ErrConflict instead of double-applying a terminal transition.
type Lifecycle struct {
	store Store
	now   func() time.Time
}

// NewLifecycle creates a lifecycle manager over the given store.
func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store, now: time.Now}
}

// Review moves a report into reviewed and records who handled it.
func (l *Lifecycle) Review(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	return l.transition(ctx, reportID, func(r *Report) {
		r.Status = StatusReviewed
		r.HandledBy = actorID
		if notes != "" {
			r.ResolutionNotes = notes
		}
	})
}

// Assign sets the handling admin and forces the report into reviewed
// without requiring a prior explicit Review call. Assign and Review are
// two paths into the same state.
func (l *Lifecycle) Assign(ctx context.Context, reportID, actorID, assigneeID string) (*Report, error) {
	if assigneeID == "" {
		assigneeID = actorID
	}
	return l.transition(ctx, reportID, func(r *Report) {
		r.Status = StatusReviewed
		r.HandledBy = assigneeID
	})
}

// Warn records a warning note against the report and keeps it open in
// reviewed so the warned user's follow-up behavior can be tracked.
func (l *Lifecycle) Warn(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	return l.transition(ctx, reportID, func(r *Report) {
		r.Status = StatusReviewed
		r.HandledBy = actorID
		if notes != "" {
			r.ResolutionNotes = notes
		}
	})
}

// Resolve closes the report, recording who resolved it and why.
func (l *Lifecycle) Resolve(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	return l.close(ctx, reportID, actorID, notes)
}

// Reject closes the report without action against the target.
func (l *Lifecycle) Reject(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	if notes == "" {
		notes = "Report rejected"
	}
	return l.close(ctx, reportID, actorID, notes)
}

// Close terminates the report. Used directly by the Dispatcher after
// content-affecting side effects so the closing note can summarize the
// outcome, including failures.
func (l *Lifecycle) Close(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	return l.close(ctx, reportID, actorID, notes)
}

// Escalate stamps the escalation fields while keeping the report in
// reviewed. A pending report is pulled into reviewed as a side effect.
func (l *Lifecycle) Escalate(ctx context.Context, reportID, actorID, escalateTo, reason string) (*Report, error) {
	now := l.now()
	return l.transition(ctx, reportID, func(r *Report) {
		r.Status = StatusReviewed
		if r.HandledBy == "" {
			r.HandledBy = actorID
		}
		r.EscalatedTo = escalateTo
		r.EscalatedAt = &now
		r.EscalationReason = reason
	})
}

// Reopen is the closed state's only escape hatch. It requires the report
// to actually be closed and returns it to reviewed; the prior resolution
// fields are kept as history.
func (l *Lifecycle) Reopen(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	report, err := l.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status != StatusClosed {
		return nil, fmt.Errorf("report %s is not closed: %w", reportID, ErrInvalidTransition)
	}
	return l.store.TransitionReport(ctx, reportID, StatusClosed, func(r *Report) {
		r.Status = StatusReviewed
		r.HandledBy = actorID
		if notes != "" {
			r.ResolutionNotes = notes
		}
	})
}

func (l *Lifecycle) close(ctx context.Context, reportID, actorID, notes string) (*Report, error) {
	now := l.now()
	return l.transition(ctx, reportID, func(r *Report) {
		r.Status = StatusClosed
		r.ResolvedBy = actorID
		r.ResolvedAt = &now
		if notes != "" {
			r.ResolutionNotes = notes
		}
	})
}

// transition loads the report, rejects terminal-state mutation, and applies
// the change conditioned on the status it just read.
func (l *Lifecycle) transition(ctx context.Context, reportID string, apply func(*Report)) (*Report, error) {
	report, err := l.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.Status == StatusClosed {
		return nil, fmt.Errorf("report %s is already closed: %w", reportID, ErrInvalidTransition)
	}
	return l.store.TransitionReport(ctx, reportID, report.Status, apply)
}
