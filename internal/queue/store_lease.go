package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// leaseRaceRetries bounds how many lost claim races a single Lease call
// absorbs before reporting an empty queue; each retry re-selects a candidate.
const leaseRaceRetries = 3

// Lease atomically claims the pending task with the highest priority, oldest
// first within a priority. The claim is a conditional UPDATE guarded on the
// pending status, so two racing workers can never both receive the same
// task. Returns nil when nothing is pending; callers back off and poll.
func (s *Store) Lease(ctx context.Context, workerID string) (*Task, error) {
	for attempt := 0; attempt <= leaseRaceRetries; attempt++ {
		var id string
		row := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM tasks WHERE status = ?
             ORDER BY priority DESC, created_at ASC LIMIT 1`,
			StatusPending,
		)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select lease candidate: %w", err)
		}

		now := time.Now().UTC().Format(timeLayout)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tasks SET status = ?, worker_id = ?, message = ?, updated_at = ?
             WHERE id = ? AND status = ?`,
			StatusProcessing,
			workerID,
			"claimed by worker",
			now,
			id,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim rows affected: %w", err)
		}
		if affected == 0 {
			// Another worker won the race; pick a fresh candidate.
			continue
		}
		return s.GetByID(ctx, id)
	}
	return nil, nil
}

// UpdateStatus persists a status/progress/message change. The write is
// idempotent; updated_at always advances.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, progress float64, message string) error {
	if _, ok := statusSet[status]; !ok {
		return fmt.Errorf("unknown status %q", status)
	}
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, progress = ?, message = ?, updated_at = ? WHERE id = ?`,
		status,
		progress,
		message,
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// UpdateProgress records stage progress without changing the lifecycle status.
func (s *Store) UpdateProgress(ctx context.Context, id, stage string, progress float64, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET stage = ?, progress = ?, message = ?, updated_at = ? WHERE id = ?`,
		stage,
		progress,
		message,
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkFailed records a terminal failure with the collaborator's message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, error_message = ?, message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		message,
		message,
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// MarkCompleted records success and the location of the persisted final report.
func (s *Store) MarkCompleted(ctx context.Context, id, resultPath string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, progress = 100, message = ?, result_path = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted,
		"conversion finished",
		resultPath,
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// RequestCancel flags a task for cooperative cancellation. Pending tasks
// transition straight to cancelled; a processing task keeps running until
// its worker observes the flag at the next stage boundary. Terminal tasks
// reject the request.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	if task.IsTerminal() {
		return false, nil
	}

	now := time.Now().UTC().Format(timeLayout)
	if task.Status == StatusPending || task.Status == StatusInterrupted {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tasks SET status = ?, cancel_requested = 1, message = ?, updated_at = ?
             WHERE id = ? AND status IN (?, ?)`,
			StatusCancelled,
			"cancelled before processing",
			now,
			id,
			StatusPending,
			StatusInterrupted,
		)
		if err != nil {
			return false, fmt.Errorf("cancel pending task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if affected > 0 {
			return true, nil
		}
		// The task was leased between the read and the write; fall through
		// to the cooperative path.
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		now,
		id,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CancelRequested reports whether a cancel flag is set for the task.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	row := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM tasks WHERE id = ?`, id)
	if err := row.Scan(&flag); err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// MarkCancelled records that the worker observed the cancel flag and stopped.
func (s *Store) MarkCancelled(ctx context.Context, id string, progress float64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, progress = ?, message = ?, updated_at = ? WHERE id = ?`,
		StatusCancelled,
		progress,
		"cancelled at stage boundary",
		time.Now().UTC().Format(timeLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// MarkInterrupted moves a processing task to interrupted. Best effort:
// invoked on graceful shutdown only, so a hard crash leaves the task stuck
// in processing.
func (s *Store) MarkInterrupted(ctx context.Context, id string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusInterrupted,
		"worker shut down mid-process",
		time.Now().UTC().Format(timeLayout),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark interrupted: %w", err)
	}
	return nil
}

// ResetInterrupted moves interrupted tasks back to pending for reprocessing.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET status = ?, worker_id = NULL, stage = NULL, progress = 0,
             message = 'requeued after interruption', updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(timeLayout),
		StatusInterrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted: %w", err)
	}
	return res.RowsAffected()
}
