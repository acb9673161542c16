package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres database/sql driver
)

// PostgresSink appends every recorded frame to a flat fix_audit_log table.
// It is grounded on the teacher's internal/evidence.EvidenceVault concept —
// an append-only audit trail of protocol events — simplified to a plain log
// with no hash chain, since this is forensic record-keeping, not the
// governance evidence vault's tamper-evidence concern.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection pool against dsn and ensures the
// fix_audit_log table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS fix_audit_log (
	id BIGSERIAL PRIMARY KEY,
	session_key TEXT NOT NULL,
	direction TEXT NOT NULL,
	raw BYTEA NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create fix_audit_log: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

// Record implements Sink.
func (s *PostgresSink) Record(ctx context.Context, sessionKey string, dir Direction, raw []byte, at time.Time) error {
	const stmt = `INSERT INTO fix_audit_log (session_key, direction, raw, occurred_at) VALUES ($1, $2, $3, $4)`
	_, err := s.db.ExecContext(ctx, stmt, sessionKey, string(dir), raw, at)
	if err != nil {
		return fmt.Errorf("audit: insert fix_audit_log: %w", err)
	}
	return nil
}

// Close implements Sink.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
