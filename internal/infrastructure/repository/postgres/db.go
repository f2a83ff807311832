// Package postgres persists upload records, monitoring sessions and chat
// history over database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/loader startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS report_uploads (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	chunks_created INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL DEFAULT '',
	archive_path TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_uploads_patient ON report_uploads(patient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_report_uploads_gate ON report_uploads(patient_id, status);

CREATE TABLE IF NOT EXISTS monitoring_sessions (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	status TEXT NOT NULL,
	max_questions INTEGER NOT NULL,
	risk_level TEXT,
	risk_reasons JSONB,
	action TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_monitoring_sessions_patient ON monitoring_sessions(patient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS session_questions (
	session_id TEXT NOT NULL REFERENCES monitoring_sessions(id),
	position INTEGER NOT NULL,
	question TEXT NOT NULL,
	answer_type TEXT NOT NULL,
	answer TEXT,
	answered BOOLEAN NOT NULL DEFAULT FALSE,
	asked_at TIMESTAMPTZ NOT NULL,
	answered_at TIMESTAMPTZ,
	PRIMARY KEY (session_id, position)
);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	risk_reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
	sources JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_patient ON chat_messages(patient_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
