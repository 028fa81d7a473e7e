package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trustline/internal/metrics"
	"trustline/internal/recovery"
)

// Outcome is the result status of a dispatched action.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeDenied            Outcome = "denied"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeConflict          Outcome = "conflict"
	OutcomeInvalidTransition Outcome = "invalid_transition"
)

// ActionRequest describes one moderation action against a report. The
// actor's identity and role arrive already resolved; the engine performs
// no credential verification.
type ActionRequest struct {
	ReportID  string `json:"report_id"`
	Action    Action `json:"action"`
	ActorID   string `json:"actor_id"`
	ActorRole Role   `json:"actor_role"`

	Notes      string `json:"notes,omitempty"`
	AssigneeID string `json:"assignee_id,omitempty"`
	EscalateTo string `json:"escalate_to,omitempty"`
	NewRole    Role   `json:"new_role,omitempty"`

	// Captured for the audit entry only.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// Result describes what happened. Denials, missing reports, races, and
// terminal-state violations are outcomes, not errors; the error return of
// Perform is reserved for infrastructure failures (including audit write
// failures, which must never be swallowed).
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Report  *Report `json:"report,omitempty"`

	// Success is false when a downstream side effect failed; the report
	// is still closed with a failure note so the admin's intent does not
	// silently vanish, and the audit entry records the failure.
	Success bool `json:"success"`

	// CanBeReversed records whether the side effect is reversible by
	// design: an assignment can be reassigned, soft-deleted content can
	// be restored within its grace window, and blocks, suspensions, and
	// role changes can be flipped back.
	CanBeReversed bool `json:"can_be_reversed"`

	// RestorationToken is set after a successful delete_content so the
	// owner can be handed the restore capability. Token delivery is the
	// caller's concern.
	RestorationToken string `json:"restoration_token,omitempty"`
}

// reversibleActions marks side effects that are undoable by design.
var reversibleActions = map[Action]bool{
	ActionAssign:        true,
	ActionDeleteContent: true,
	ActionBanUser:       true,
	ActionSuspendUser:   true,
	ActionChangeRole:    true,
}

// Dispatcher is the orchestration layer: it gates actions through the
// permission matrix, delegates to the lifecycle manager and the external
// collaborators, and writes exactly one audit entry per performed action.
type Dispatcher struct {
	store     Store
	lifecycle *Lifecycle
	recovery  *recovery.Service
	directory UserDirectory
	content   map[TargetType]ContentStore
	now       func() time.Time
}

// NewDispatcher wires the dispatcher to its collaborators. content maps
// each reportable target type to the store that owns that content; user
// targets have no content store.
func NewDispatcher(store Store, lc *Lifecycle, rec *recovery.Service, dir UserDirectory, content map[TargetType]ContentStore) *Dispatcher {
	return &Dispatcher{
		store:     store,
		lifecycle: lc,
		recovery:  rec,
		directory: dir,
		content:   content,
		now:       time.Now,
	}
}

// Perform executes one moderation action against a report.
func (d *Dispatcher) Perform(ctx context.Context, req ActionRequest) (*Result, error) {
	if !dispatchable(req.Action) {
		return nil, fmt.Errorf("action %q is not dispatchable", req.Action)
	}

	report, err := d.store.GetReport(ctx, req.ReportID)
	if errors.Is(err, ErrNotFound) {
		return &Result{Outcome: OutcomeNotFound, Reason: "report not found"}, nil
	}
	if err != nil {
		return nil, err
	}

	if !Allowed(req.ActorRole, req.Action) {
		perr := &PermissionError{Role: req.ActorRole, Action: req.Action}
		log.Warn().
			Str("actor", req.ActorID).
			Str("role", string(req.ActorRole)).
			Str("action", string(req.Action)).
			Str("report_id", req.ReportID).
			Msg("moderation: action denied")
		metrics.PermissionDenialsTotal.WithLabelValues(string(req.ActorRole), string(req.Action)).Inc()
		return &Result{Outcome: OutcomeDenied, Reason: perr.Error()}, nil
	}

	result, err := d.execute(ctx, report, req)
	if err != nil {
		return nil, err
	}

	metrics.ActionsTotal.WithLabelValues(string(req.Action), string(result.Outcome)).Inc()
	if result.Outcome != OutcomeOK {
		return result, nil
	}

	// Exactly one audit entry per performed action. A write failure
	// propagates: the action is not complete while unaudited.
	if err := d.audit(ctx, report, req, result); err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return result, nil
}

// dispatchable excludes the matrix rows that are not Dispatcher actions:
// report submission happens outside the dispatcher and view_reports gates
// read endpoints.
func dispatchable(a Action) bool {
	switch a {
	case ActionSubmitReport, ActionViewReports:
		return false
	}
	for _, known := range AllActions() {
		if a == known {
			return true
		}
	}
	return false
}

func (d *Dispatcher) execute(ctx context.Context, report *Report, req ActionRequest) (*Result, error) {
	switch req.Action {
	case ActionReview, ActionAssign, ActionWarn, ActionResolve, ActionReject, ActionEscalate, ActionReopen:
		return d.executeLifecycle(ctx, req)
	case ActionDeleteContent:
		return d.executeDeleteContent(ctx, report, req)
	case ActionBanUser, ActionSuspendUser:
		return d.executeUserAction(ctx, report, req)
	case ActionChangeRole:
		return d.executeChangeRole(ctx, report, req)
	}
	return nil, fmt.Errorf("unhandled action %q", req.Action)
}

func (d *Dispatcher) executeLifecycle(ctx context.Context, req ActionRequest) (*Result, error) {
	var (
		updated *Report
		err     error
	)
	switch req.Action {
	case ActionReview:
		updated, err = d.lifecycle.Review(ctx, req.ReportID, req.ActorID, req.Notes)
	case ActionAssign:
		updated, err = d.lifecycle.Assign(ctx, req.ReportID, req.ActorID, req.AssigneeID)
	case ActionWarn:
		updated, err = d.lifecycle.Warn(ctx, req.ReportID, req.ActorID, req.Notes)
	case ActionResolve:
		updated, err = d.lifecycle.Resolve(ctx, req.ReportID, req.ActorID, req.Notes)
	case ActionReject:
		updated, err = d.lifecycle.Reject(ctx, req.ReportID, req.ActorID, req.Notes)
	case ActionEscalate:
		updated, err = d.lifecycle.Escalate(ctx, req.ReportID, req.ActorID, req.EscalateTo, req.Notes)
	case ActionReopen:
		updated, err = d.lifecycle.Reopen(ctx, req.ReportID, req.ActorID, req.Notes)
	}
	if err != nil {
		return d.lifecycleFailure(err)
	}
	return &Result{
		Outcome:       OutcomeOK,
		Report:        updated,
		Success:       true,
		CanBeReversed: reversibleActions[req.Action],
	}, nil
}

// executeDeleteContent captures a recoverable snapshot, marks the content
// deleted, and closes the report. A downstream failure is absorbed: the
// report is still closed with a failure note rather than left pending,
// and the audit entry records the failure for later reconciliation.
func (d *Dispatcher) executeDeleteContent(ctx context.Context, report *Report, req ActionRequest) (*Result, error) {
	var (
		token   string
		sideErr error
		note    string
	)

	rec, sideErr := d.softDeleteTarget(ctx, report, req.ActorID)
	if sideErr == nil {
		token = rec.Token
		note = fmt.Sprintf("Content deleted: %s %s soft-deleted, restorable until %s",
			report.TargetType, report.TargetID, rec.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		log.Error().Err(sideErr).
			Str("report_id", report.ID).
			Str("target_type", string(report.TargetType)).
			Str("target_id", report.TargetID).
			Msg("moderation: content deletion failed")
		note = fmt.Sprintf("Failed: content deletion did not complete: %v", sideErr)
	}
	if req.Notes != "" {
		note += ". " + req.Notes
	}

	updated, err := d.lifecycle.Close(ctx, report.ID, req.ActorID, note)
	if err != nil {
		return d.lifecycleFailure(err)
	}

	return &Result{
		Outcome:          OutcomeOK,
		Report:           updated,
		Success:          sideErr == nil,
		CanBeReversed:    sideErr == nil,
		RestorationToken: token,
		Reason:           failureReason(sideErr),
	}, nil
}

// softDeleteTarget locates the target content and moves it into the
// recovery store under the kind's grace window.
func (d *Dispatcher) softDeleteTarget(ctx context.Context, report *Report, actorID string) (*recovery.Record, error) {
	kind, ok := recoveryKind(report.TargetType)
	if !ok {
		return nil, &DownstreamError{Op: "resolve target", Err: fmt.Errorf("target type %q holds no deletable content", report.TargetType)}
	}
	cs, ok := d.content[report.TargetType]
	if !ok {
		return nil, &DownstreamError{Op: "resolve target", Err: fmt.Errorf("no content store for target type %q", report.TargetType)}
	}

	snapshot, err := cs.FindByID(ctx, report.TargetID)
	if err != nil {
		return nil, &DownstreamError{Op: "find content", Err: err}
	}

	rec, err := d.recovery.SoftDelete(ctx, kind, report.TargetID, report.ReportedUserID, snapshot)
	if err != nil {
		return nil, &DownstreamError{Op: "soft delete", Err: err}
	}

	if err := cs.MarkDeleted(ctx, report.TargetID, actorID, rec.ExpiresAt); err != nil {
		return nil, &DownstreamError{Op: "mark deleted", Err: err}
	}

	return rec, nil
}

// recoveryKind maps a reportable target type to its soft-delete policy.
// Comments fall under the message window: like chat messages they are
// conversational content a user may only miss later.
func recoveryKind(t TargetType) (recovery.Kind, bool) {
	switch t {
	case TargetProject:
		return recovery.KindProject, true
	case TargetChat:
		return recovery.KindChat, true
	case TargetComment:
		return recovery.KindMessage, true
	}
	return "", false
}

func (d *Dispatcher) executeUserAction(ctx context.Context, report *Report, req ActionRequest) (*Result, error) {
	var (
		sideErr error
		verb    string
	)
	switch req.Action {
	case ActionBanUser:
		verb = "banned"
		if err := d.directory.SetBlocked(ctx, report.ReportedUserID, true); err != nil {
			sideErr = &DownstreamError{Op: "block user", Err: err}
		}
	case ActionSuspendUser:
		verb = "suspended"
		if err := d.directory.SetActive(ctx, report.ReportedUserID, false); err != nil {
			sideErr = &DownstreamError{Op: "suspend user", Err: err}
		}
	}

	note := fmt.Sprintf("User %s %s (reason: %s)", report.ReportedUserID, verb, report.Reason)
	if sideErr != nil {
		log.Error().Err(sideErr).
			Str("report_id", report.ID).
			Str("user_id", report.ReportedUserID).
			Msg("moderation: user action failed")
		note = fmt.Sprintf("Failed: user %s could not be %s: %v", report.ReportedUserID, verb, sideErr)
	}
	if req.Notes != "" {
		note += ". " + req.Notes
	}

	updated, err := d.lifecycle.Close(ctx, report.ID, req.ActorID, note)
	if err != nil {
		return d.lifecycleFailure(err)
	}

	return &Result{
		Outcome:       OutcomeOK,
		Report:        updated,
		Success:       sideErr == nil,
		CanBeReversed: sideErr == nil,
		Reason:        failureReason(sideErr),
	}, nil
}

func (d *Dispatcher) executeChangeRole(ctx context.Context, report *Report, req ActionRequest) (*Result, error) {
	var sideErr error
	if req.NewRole == "" {
		sideErr = &DownstreamError{Op: "change role", Err: errors.New("no new role given")}
	} else if err := d.directory.SetRole(ctx, report.ReportedUserID, req.NewRole); err != nil {
		sideErr = &DownstreamError{Op: "change role", Err: err}
	}

	note := fmt.Sprintf("User %s role changed to %s", report.ReportedUserID, req.NewRole)
	if sideErr != nil {
		log.Error().Err(sideErr).
			Str("report_id", report.ID).
			Str("user_id", report.ReportedUserID).
			Msg("moderation: role change failed")
		note = fmt.Sprintf("Failed: role change for user %s did not complete: %v", report.ReportedUserID, sideErr)
	}
	if req.Notes != "" {
		note += ". " + req.Notes
	}

	updated, err := d.lifecycle.Close(ctx, report.ID, req.ActorID, note)
	if err != nil {
		return d.lifecycleFailure(err)
	}

	return &Result{
		Outcome:       OutcomeOK,
		Report:        updated,
		Success:       sideErr == nil,
		CanBeReversed: sideErr == nil,
		Reason:        failureReason(sideErr),
	}, nil
}

// lifecycleFailure maps state-machine errors onto result outcomes.
func (d *Dispatcher) lifecycleFailure(err error) (*Result, error) {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return &Result{Outcome: OutcomeInvalidTransition, Reason: ErrInvalidTransition.Error()}, nil
	case errors.Is(err, ErrConflict):
		return &Result{Outcome: OutcomeConflict, Reason: ErrConflict.Error()}, nil
	case errors.Is(err, ErrNotFound):
		return &Result{Outcome: OutcomeNotFound, Reason: "report not found"}, nil
	}
	return nil, err
}

func failureReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// audit writes the single audit entry for a performed action. Actor name
// and email are resolved best-effort from the directory.
func (d *Dispatcher) audit(ctx context.Context, report *Report, req ActionRequest, result *Result) error {
	entry := AuditEntry{
		ID:          uuid.NewString(),
		ActorID:     req.ActorID,
		Action:      string(req.Action),
		ActionType:  actionType(req.Action),
		Description: auditDescription(report, req, result),
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Timestamp:   d.now(),
		Metadata: map[string]string{
			"report_id":       report.ID,
			"can_be_reversed": strconv.FormatBool(result.CanBeReversed),
			"success":         strconv.FormatBool(result.Success),
		},
	}

	if actor, err := d.directory.FindByID(ctx, req.ActorID); err == nil {
		entry.ActorName = actor.Name
		entry.ActorEmail = actor.Email
	}

	switch req.Action {
	case ActionBanUser, ActionSuspendUser, ActionChangeRole:
		entry.TargetType = AuditTargetUser
		entry.TargetID = report.ReportedUserID
	case ActionDeleteContent:
		entry.TargetType = auditTargetForContent(report.TargetType)
		entry.TargetID = report.TargetID
		entry.TargetName = report.TargetDetails.Title
		entry.Metadata["target_type"] = string(report.TargetType)
	default:
		entry.TargetType = AuditTargetReport
		entry.TargetID = report.ID
	}

	return d.store.LogAction(ctx, entry)
}

func auditTargetForContent(t TargetType) AuditTargetType {
	switch t {
	case TargetProject:
		return AuditTargetProject
	case TargetComment:
		return AuditTargetComment
	case TargetChat:
		return AuditTargetChat
	}
	return AuditTargetSystem
}

func actionType(a Action) ActionType {
	switch a {
	case ActionDeleteContent:
		return ActionTypeDelete
	case ActionBanUser, ActionSuspendUser:
		return ActionTypeBlock
	case ActionChangeRole:
		return ActionTypeRoleChange
	case ActionReopen:
		return ActionTypeRestore
	}
	return ActionTypeUpdate
}

func auditDescription(report *Report, req ActionRequest, result *Result) string {
	desc := fmt.Sprintf("Report %s: %s", report.ID, req.Action)
	if !result.Success {
		desc += " (side effect failed)"
	}
	return desc
}
