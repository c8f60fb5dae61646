package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// AuditRunStore implements domain.AuditRunStore using PostgreSQL. Stage
// results are stored as JSONB alongside the run outcome.
type AuditRunStore struct {
	pool *pgxpool.Pool
}

// NewAuditRunStore creates an AuditRunStore backed by the given pool.
func NewAuditRunStore(pool *pgxpool.Pool) *AuditRunStore {
	return &AuditRunStore{pool: pool}
}

// Insert persists one finished audit run.
func (s *AuditRunStore) Insert(ctx context.Context, run domain.AuditRun) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("postgres: marshal stages: %w", err)
	}

	const query = `
		INSERT INTO audit_runs (id, started_at, finished_at, success, stages)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.Success, stages,
	); err != nil {
		return fmt.Errorf("postgres: insert audit run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent returns up to limit runs, most recently finished first.
func (s *AuditRunStore) ListRecent(ctx context.Context, limit int) ([]domain.AuditRun, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, started_at, finished_at, success, stages
		FROM audit_runs
		ORDER BY finished_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.AuditRun
	for rows.Next() {
		var run domain.AuditRun
		var stages []byte
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Success, &stages); err != nil {
			return nil, fmt.Errorf("postgres: scan audit run: %w", err)
		}
		if stages != nil {
			if err := json.Unmarshal(stages, &run.Stages); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal stages: %w", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list audit runs rows: %w", err)
	}
	return runs, nil
}

// Compile-time interface check.
var _ domain.AuditRunStore = (*AuditRunStore)(nil)
