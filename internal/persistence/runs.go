package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveRun persists a run and its task results in one transaction.
// The record's ID is filled in on success.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if err := s.EnsureSession(ctx, rec.SessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (session_id, strategy, reasoning, success, total_tasks, batch_count, max_parallelism, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Strategy, rec.Reasoning, rec.Success,
		rec.TotalTasks, rec.BatchCount, rec.MaxParallelism,
		rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}

	for _, tr := range rec.Results {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_results (run_id, task_id, output, tokens_used, duration_ms, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, tr.TaskID, tr.Output, tr.TokensUsed,
			tr.Duration.Milliseconds(), tr.Error)
		if err != nil {
			return fmt.Errorf("failed to save result for task %s: %w", tr.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	rec.ID = runID
	return nil
}

// GetRuns returns all runs for a session, oldest first, with their task
// results attached.
func (s *SQLiteStore) GetRuns(ctx context.Context, sessionID string) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, reasoning, success, total_tasks, batch_count, max_parallelism, duration_ms, created_at
		FROM runs WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		rec := &RunRecord{SessionID: sessionID}
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.Strategy, &rec.Reasoning, &rec.Success,
			&rec.TotalTasks, &rec.BatchCount, &rec.MaxParallelism,
			&durationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for _, rec := range runs {
		results, err := s.getResults(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		rec.Results = results
	}
	return runs, nil
}

func (s *SQLiteStore) getResults(ctx context.Context, runID int64) ([]TaskResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, output, tokens_used, duration_ms, error
		FROM task_results WHERE run_id = ? ORDER BY id`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []TaskResult
	for rows.Next() {
		var tr TaskResult
		var output, taskErr sql.NullString
		var durationMS int64
		if err := rows.Scan(&tr.TaskID, &output, &tr.TokensUsed, &durationMS, &taskErr); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		tr.Output = output.String
		tr.Error = taskErr.String
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, tr)
	}
	return results, rows.Err()
}
