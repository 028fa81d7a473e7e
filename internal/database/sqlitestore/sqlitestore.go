// Package sqlitestore provides SQLite-backed store implementations for
// hosts that prefer SQL storage over the embedded bolt database.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS moderation_reports (
    id                TEXT PRIMARY KEY,
    reporter_id       TEXT NOT NULL,
    reporter_name     TEXT NOT NULL DEFAULT '',
    reporter_email    TEXT NOT NULL DEFAULT '',
    reported_user_id  TEXT NOT NULL DEFAULT '',
    target_type       TEXT NOT NULL,
    target_id         TEXT NOT NULL,
    target_details    TEXT NOT NULL DEFAULT '{}',
    reason            TEXT NOT NULL,
    description       TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    priority          TEXT NOT NULL,
    handled_by        TEXT NOT NULL DEFAULT '',
    resolved_by       TEXT NOT NULL DEFAULT '',
    resolved_at       TEXT,
    resolution_notes  TEXT NOT NULL DEFAULT '',
    escalated_to      TEXT NOT NULL DEFAULT '',
    escalated_at      TEXT,
    escalation_reason TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_status   ON moderation_reports (status);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON moderation_reports (reporter_id, target_type, target_id);

CREATE TABLE IF NOT EXISTS moderation_audit_log (
    id          TEXT PRIMARY KEY,
    actor_id    TEXT NOT NULL,
    actor_name  TEXT NOT NULL DEFAULT '',
    actor_email TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    action_type TEXT NOT NULL,
    target_type TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    target_name TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    timestamp   TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON moderation_audit_log (timestamp);
`

// Open opens (or creates) a SQLite database at path, instrumented with
// OpenTelemetry, and applies the moderation schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	driverName, err := otelsql.Register("sqlite",
		otelsql.WithAttributes(
			attribute.String("db.system", "sqlite"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// SQLite allows a single writer; keeping one connection avoids
	// SQLITE_BUSY under concurrent updates.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return db, nil
}
