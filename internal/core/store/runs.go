package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/streamlens/streamlens/internal/core"
)

// SaveRun records the outcome of an aggregation run.
func (s *Store) SaveRun(ctx context.Context, run core.RunSummary) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if run.RunID == "" {
		return errors.New("run id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (run_id, sources, channels, valid_endpoints, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			sources = excluded.sources,
			channels = excluded.channels,
			valid_endpoints = excluded.valid_endpoints,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, run.RunID, run.Sources, run.Channels, run.ValidEndpoints,
		run.StartedAt.UTC().Unix(), run.CompletedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store run summary: %w", err)
	}

	return nil
}

// LatestRun returns the most recently completed run, or nil when the store
// holds none.
func (s *Store) LatestRun(ctx context.Context) (*core.RunSummary, error) {
	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, sources, channels, valid_endpoints, started_at, completed_at
		FROM runs
		ORDER BY completed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var runs []core.RunSummary
	for rows.Next() {
		var (
			run       core.RunSummary
			startedAt int64
			doneAt    int64
		)
		if err := rows.Scan(&run.RunID, &run.Sources, &run.Channels, &run.ValidEndpoints, &startedAt, &doneAt); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		run.StartedAt = time.Unix(startedAt, 0).UTC()
		run.CompletedAt = time.Unix(doneAt, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch recent runs: %w", err)
	}

	return runs, nil
}
