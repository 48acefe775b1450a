package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/doctorlittle/coderag/internal/core/domain"
)

// AuditRepository persists retrieval audit records consumed by the worker.
// It implements ports.AuditStore.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

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

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS retrieval_audit (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL DEFAULT '',
	query TEXT NOT NULL,
	specialty TEXT NOT NULL,
	region TEXT NOT NULL,
	total_matches INTEGER NOT NULL,
	icd10_count INTEGER NOT NULL,
	cpt_count INTEGER NOT NULL,
	hcpcs_count INTEGER NOT NULL,
	duration_ms DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrieval_audit_created_at ON retrieval_audit(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_retrieval_audit_specialty ON retrieval_audit(specialty);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AuditRepository) RecordRetrieval(ctx context.Context, audit *domain.RetrievalAudit) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO retrieval_audit (
	id, request_id, query, specialty, region, total_matches, icd10_count, cpt_count, hcpcs_count, duration_ms, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`,
		audit.ID, audit.RequestID, audit.Query, audit.Specialty, audit.Region,
		audit.TotalMatches, audit.ICD10Count, audit.CPTCount, audit.HCPCSCount,
		audit.DurationMS, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert retrieval audit: %w", err)
	}
	return nil
}
