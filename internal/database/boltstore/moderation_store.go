package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"trustline/internal/moderation"
)

// defaultAuditLimit caps audit log reads when the query gives no limit.
const defaultAuditLimit = 50

// ModerationStore provides persistent storage for reports and the audit log.
type ModerationStore struct {
	db *bolt.DB
}

// Ensure ModerationStore implements the interface at compile time.
var _ moderation.Store = (*ModerationStore)(nil)

// CreateReport stores a new report and indexes it by reporter.
func (s *ModerationStore) CreateReport(ctx context.Context, report moderation.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		if err := bucket.Put([]byte(report.ID), data); err != nil {
			return err
		}

		// Index by reporter for duplicate checks
		reporterIndex := tx.Bucket(BucketReportsByReporter)
		if reporterIndex != nil {
			key := []byte(report.ReporterID + ":" + report.ID)
			if err := reporterIndex.Put(key, []byte(report.ID)); err != nil {
				return err
			}
		}

		return nil
	})
}

// GetReport retrieves a report by id.
func (s *ModerationStore) GetReport(ctx context.Context, id string) (*moderation.Report, error) {
	var report *moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		report = &moderation.Report{}
		return json.Unmarshal(data, report)
	})
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report %s: %w", id, moderation.ErrNotFound)
	}

	return report, nil
}

// ListReports returns reports matching the filter, newest first.
func (s *ModerationStore) ListReports(ctx context.Context, filter moderation.ReportFilter) ([]moderation.Report, error) {
	var reports []moderation.Report

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var report moderation.Report
			if err := json.Unmarshal(v, &report); err != nil {
				return nil // Skip malformed entries
			}
			if filter.Status != "" && report.Status != filter.Status {
				return nil
			}
			if filter.TargetType != "" && report.TargetType != filter.TargetType {
				return nil
			}
			if filter.ReportedUserID != "" && report.ReportedUserID != filter.ReportedUserID {
				return nil
			}
			reports = append(reports, report)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(reports) {
			return nil, nil
		}
		reports = reports[filter.Offset:]
	}
	if filter.Limit > 0 && len(reports) > filter.Limit {
		reports = reports[:filter.Limit]
	}

	return reports, nil
}

// HasReported checks if a user has already reported a specific target.
func (s *ModerationStore) HasReported(ctx context.Context, reporterID string, targetType moderation.TargetType, targetID string) (bool, error) {
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		reporterIndex := tx.Bucket(BucketReportsByReporter)
		if reporterIndex == nil {
			return nil
		}
		reportsBucket := tx.Bucket(BucketReports)
		if reportsBucket == nil {
			return nil
		}

		cursor := reporterIndex.Cursor()
		prefix := []byte(reporterID + ":")

		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			data := reportsBucket.Get(v)
			if data == nil {
				continue
			}

			var report moderation.Report
			if err := json.Unmarshal(data, &report); err != nil {
				continue
			}
			if report.TargetType == targetType && report.TargetID == targetID {
				found = true
				return nil
			}
		}

		return nil
	})

	return found, err
}

// TransitionReport applies apply to the report iff its status still equals
// expect. Bolt serializes writers, so the check-then-write inside one
// Update transaction gives the conditional-update guarantee: a writer that
// read a stale status observes the mismatch here and loses with
// ErrConflict.
func (s *ModerationStore) TransitionReport(ctx context.Context, id string, expect moderation.Status, apply func(*moderation.Report)) (*moderation.Report, error) {
	var updated *moderation.Report

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketReports)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketReports)
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("report %s: %w", id, moderation.ErrNotFound)
		}

		var report moderation.Report
		if err := json.Unmarshal(data, &report); err != nil {
			return err
		}

		if report.Status != expect {
			return fmt.Errorf("report %s is %s, expected %s: %w", id, report.Status, expect, moderation.ErrConflict)
		}

		apply(&report)
		report.UpdatedAt = time.Now()

		newData, err := json.Marshal(report)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), newData); err != nil {
			return err
		}

		updated = &report
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// LogAction stores a moderation action in the audit log. Entries are
// append-only: nothing in this store ever rewrites or deletes them.
func (s *ModerationStore) LogAction(ctx context.Context, entry moderation.AuditEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketAuditLog)
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal audit entry: %w", err)
		}

		// Zero-padded timestamp key for chronological ordering,
		// suffixed with the id for uniqueness
		key := fmt.Sprintf("%020d:%s", entry.Timestamp.UnixNano(), entry.ID)

		return bucket.Put([]byte(key), data)
	})
}

// ListAuditLog returns audit entries matching the query in reverse
// chronological order (newest first).
func (s *ModerationStore) ListAuditLog(ctx context.Context, query moderation.AuditQuery) ([]moderation.AuditEntry, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	var entries []moderation.AuditEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditLog)
		if bucket == nil {
			return nil
		}

		skipped := 0
		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry moderation.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				continue // Skip malformed entries
			}
			if !matchesAuditQuery(&entry, query) {
				continue
			}
			if skipped < query.Offset {
				skipped++
				continue
			}
			entries = append(entries, entry)
		}

		return nil
	})

	return entries, err
}

func matchesAuditQuery(entry *moderation.AuditEntry, query moderation.AuditQuery) bool {
	if query.ActorID != "" && entry.ActorID != query.ActorID {
		return false
	}
	if query.TargetType != "" && entry.TargetType != query.TargetType {
		return false
	}
	if query.TargetID != "" && entry.TargetID != query.TargetID {
		return false
	}
	if query.ActionType != "" && entry.ActionType != query.ActionType {
		return false
	}
	if !query.Since.IsZero() && entry.Timestamp.Before(query.Since) {
		return false
	}
	if !query.Until.IsZero() && !entry.Timestamp.Before(query.Until) {
		return false
	}
	return true
}

// hasPrefix checks if a byte slice has a given prefix.
func hasPrefix(s, prefix []byte) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if s[i] != b {
			return false
		}
	}
	return true
}
