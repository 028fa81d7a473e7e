package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trustline/internal/moderation"
)

// ModerationStore implements moderation.Store using SQLite.
type ModerationStore struct {
	db *sql.DB
}

// NewModerationStore creates a ModerationStore backed by the given database.
// The database must already have the moderation schema applied.
func NewModerationStore(db *sql.DB) *ModerationStore {
	return &ModerationStore{db: db}
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

const reportColumns = `id, reporter_id, reporter_name, reporter_email, reported_user_id,
	target_type, target_id, target_details, reason, description, status, priority,
	handled_by, resolved_by, resolved_at, resolution_notes,
	escalated_to, escalated_at, escalation_reason, created_at, updated_at`

// ========== Reports ==========

func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	details, err := json.Marshal(report.TargetDetails)
	if err != nil {
		details = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, report.ID, report.ReporterID, report.ReporterName, report.ReporterEmail, report.ReportedUserID,
		string(report.TargetType), report.TargetID, string(details), string(report.Reason), report.Description,
		string(report.Status), string(report.Priority),
		report.HandledBy, report.ResolvedBy, timePtrString(report.ResolvedAt), report.ResolutionNotes,
		report.EscalatedTo, timePtrString(report.EscalatedAt), report.EscalationReason,
		report.CreatedAt.Format(time.RFC3339Nano), report.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM moderation_reports WHERE id = ?
	`, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", id, moderation.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ModerationStore) ListReports(ctx context.Context, filter moderation.ReportFilter) ([]moderation.Report, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TargetType != "" {
		clauses = append(clauses, "target_type = ?")
		args = append(args, string(filter.TargetType))
	}
	if filter.ReportedUserID != "" {
		clauses = append(clauses, "reported_user_id = ?")
		args = append(args, filter.ReportedUserID)
	}

	query := `SELECT ` + reportColumns + ` FROM moderation_reports`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []moderation.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			continue
		}
		reports = append(reports, *report)
	}
	return reports, rows.Err()
}

func (s *ModerationStore) HasReported(ctx context.Context, reporterID string, targetType moderation.TargetType, targetID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM moderation_reports
		WHERE reporter_id = ? AND target_type = ? AND target_id = ? LIMIT 1
	`, reporterID, string(targetType), targetID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return exists == 1, err
}

// TransitionReport applies apply to the report iff its status still equals
// expect. The guarded UPDATE carries the status predicate, so a writer
// racing on a stale read affects zero rows and loses with ErrConflict.
func (s *ModerationStore) TransitionReport(ctx context.Context, id string, expect moderation.Status, apply func(*moderation.Report)) (*moderation.Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM moderation_reports WHERE id = ?
	`, id)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", id, moderation.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if report.Status != expect {
		return nil, fmt.Errorf("report %s is %s, expected %s: %w", id, report.Status, expect, moderation.ErrConflict)
	}

	apply(report)
	report.UpdatedAt = time.Now()

	details, err := json.Marshal(report.TargetDetails)
	if err != nil {
		details = []byte("{}")
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE moderation_reports SET
			status = ?, priority = ?, handled_by = ?, resolved_by = ?, resolved_at = ?,
			resolution_notes = ?, escalated_to = ?, escalated_at = ?, escalation_reason = ?,
			target_details = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(report.Status), string(report.Priority), report.HandledBy, report.ResolvedBy,
		timePtrString(report.ResolvedAt), report.ResolutionNotes,
		report.EscalatedTo, timePtrString(report.EscalatedAt), report.EscalationReason,
		string(details), report.UpdatedAt.Format(time.RFC3339Nano),
		id, string(expect))
	if err != nil {
		return nil, fmt.Errorf("transition report: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("report %s: %w", id, moderation.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return report, nil
}

// ========== Audit Log ==========

func (s *ModerationStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		metadata = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO moderation_audit_log
			(id, actor_id, actor_name, actor_email, action, action_type,
			 target_type, target_id, target_name, description, ip_address, user_agent,
			 timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ActorID, entry.ActorName, entry.ActorEmail, entry.Action, string(entry.ActionType),
		string(entry.TargetType), entry.TargetID, entry.TargetName, entry.Description,
		entry.IPAddress, entry.UserAgent,
		entry.Timestamp.Format(time.RFC3339Nano), string(metadata))
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

func (s *ModerationStore) ListAuditLog(ctx context.Context, query moderation.AuditQuery) ([]moderation.AuditEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	clauses := []string{"1=1"}
	var args []any
	if query.ActorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, query.ActorID)
	}
	if query.TargetType != "" {
		clauses = append(clauses, "target_type = ?")
		args = append(args, string(query.TargetType))
	}
	if query.TargetID != "" {
		clauses = append(clauses, "target_id = ?")
		args = append(args, query.TargetID)
	}
	if query.ActionType != "" {
		clauses = append(clauses, "action_type = ?")
		args = append(args, string(query.ActionType))
	}
	if !query.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, query.Since.Format(time.RFC3339Nano))
	}
	if !query.Until.IsZero() {
		clauses = append(clauses, "timestamp < ?")
		args = append(args, query.Until.Format(time.RFC3339Nano))
	}
	args = append(args, limit, query.Offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, actor_name, actor_email, action, action_type,
		       target_type, target_id, target_name, description, ip_address, user_agent,
		       timestamp, metadata
		FROM moderation_audit_log
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY timestamp DESC LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.AuditEntry
	for rows.Next() {
		var e moderation.AuditEntry
		var timestampStr, metadataStr string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.ActorEmail, &e.Action, &e.ActionType,
			&e.TargetType, &e.TargetID, &e.TargetName, &e.Description, &e.IPAddress, &e.UserAgent,
			&timestampStr, &metadataStr); err != nil {
			continue
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestampStr)
		_ = json.Unmarshal([]byte(metadataStr), &e.Metadata)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ========== Scanning helpers ==========

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*moderation.Report, error) {
	var r moderation.Report
	var detailsStr, createdAtStr, updatedAtStr string
	var resolvedAtStr, escalatedAtStr sql.NullString
	if err := row.Scan(&r.ID, &r.ReporterID, &r.ReporterName, &r.ReporterEmail, &r.ReportedUserID,
		&r.TargetType, &r.TargetID, &detailsStr, &r.Reason, &r.Description, &r.Status, &r.Priority,
		&r.HandledBy, &r.ResolvedBy, &resolvedAtStr, &r.ResolutionNotes,
		&r.EscalatedTo, &escalatedAtStr, &r.EscalationReason, &createdAtStr, &updatedAtStr); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(detailsStr), &r.TargetDetails)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAtStr)
	r.ResolvedAt = parseNullTime(resolvedAtStr)
	r.EscalatedAt = parseNullTime(escalatedAtStr)
	return &r, nil
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func timePtrString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}
