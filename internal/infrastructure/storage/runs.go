package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SaveRun records a finished run. Saving the same run id again overwrites it.
func (s *Storage) SaveRun(ctx context.Context, run *RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs
		(run_id, tenant_id, event_type, started_at, completed_at, dry_run,
		 docs, txs, accepted, suggested, prepass_hits, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			completed_at = excluded.completed_at,
			accepted = excluded.accepted,
			suggested = excluded.suggested,
			prepass_hits = excluded.prepass_hits,
			status = excluded.status,
			error = excluded.error
	`,
		run.RunID,
		run.TenantID,
		run.EventType,
		run.StartedAt.UTC(),
		run.CompletedAt.UTC(),
		run.DryRun,
		run.Docs,
		run.Txs,
		run.Accepted,
		run.Suggested,
		run.PrepassHits,
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, tenant_id, event_type, started_at, completed_at, dry_run,
		       docs, txs, accepted, suggested, prepass_hits, status, error
		FROM reconcile_runs
		ORDER BY started_at DESC, run_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id
func (s *Storage) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, tenant_id, event_type, started_at, completed_at, dry_run,
		       docs, txs, accepted, suggested, prepass_hits, status, error
		FROM reconcile_runs WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func scanRun(r rowScanner) (*RunRecord, error) {
	var run RunRecord
	err := r.Scan(
		&run.RunID,
		&run.TenantID,
		&run.EventType,
		&run.StartedAt,
		&run.CompletedAt,
		&run.DryRun,
		&run.Docs,
		&run.Txs,
		&run.Accepted,
		&run.Suggested,
		&run.PrepassHits,
		&run.Status,
		&run.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return &run, nil
}
