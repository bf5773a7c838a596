package extraction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const jobColumns = `id, document_id, state, attempts, max_attempts, attempt_token, COALESCE(last_error, ''), next_attempt_at, created_at, updated_at`

// PGRepo implements Repo using Postgres. Attempt claims and attempt-scoped
// writes are single conditional UPDATEs, so concurrent workers race safely.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO extraction_jobs (id, document_id, state, attempts, max_attempts, attempt_token, last_error, next_attempt_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, NULLIF($7, ''), $8)`
	_, err := r.DB.ExecContext(ctx, query,
		job.ID, job.DocumentID, job.State, job.Attempts, job.MaxAttempts,
		job.AttemptToken, job.LastError, job.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE id = $1::uuid LIMIT 1`
	return r.scan(r.DB.QueryRowContext(ctx, query, jobID))
}

func (r *PGRepo) GetByDocument(ctx context.Context, documentID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE document_id = $1::uuid LIMIT 1`
	return r.scan(r.DB.QueryRowContext(ctx, query, documentID))
}

func (r *PGRepo) BeginAttempt(ctx context.Context, jobID, token string) (Job, error) {
	query := `
UPDATE extraction_jobs
SET state = $2, attempts = attempts + 1, attempt_token = $3, next_attempt_at = NULL, updated_at = now()
WHERE id = $1::uuid AND state = $4 AND attempts < max_attempts
RETURNING ` + jobColumns
	job, err := r.scan(r.DB.QueryRowContext(ctx, query, jobID, JobInProgress, token, JobQueued))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Job{}, r.missOrStale(ctx, jobID)
		}
		return Job{}, err
	}
	return job, nil
}

func (r *PGRepo) MarkSucceeded(ctx context.Context, jobID, token string) error {
	const query = `
UPDATE extraction_jobs
SET state = $3, last_error = NULL, next_attempt_at = NULL, updated_at = now()
WHERE id = $1::uuid AND attempt_token = $2 AND state = $4`
	return r.execAttempt(ctx, query, jobID, token, JobSucceeded, JobInProgress)
}

func (r *PGRepo) MarkRetry(ctx context.Context, jobID, token, lastError string, nextAttemptAt time.Time) error {
	const query = `
UPDATE extraction_jobs
SET state = $3, last_error = $5, next_attempt_at = $6, updated_at = now()
WHERE id = $1::uuid AND attempt_token = $2 AND state = $4`
	res, err := r.DB.ExecContext(ctx, query, jobID, token, JobQueued, JobInProgress, lastError, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark extraction retry: %w", err)
	}
	return r.checkAffected(ctx, res, jobID)
}

func (r *PGRepo) MarkFailed(ctx context.Context, jobID, token, lastError string) error {
	const query = `
UPDATE extraction_jobs
SET state = $3, last_error = $5, next_attempt_at = NULL, updated_at = now()
WHERE id = $1::uuid AND attempt_token = $2 AND state = $4`
	res, err := r.DB.ExecContext(ctx, query, jobID, token, JobFailed, JobInProgress, lastError)
	if err != nil {
		return fmt.Errorf("mark extraction failed: %w", err)
	}
	return r.checkAffected(ctx, res, jobID)
}

func (r *PGRepo) Requeue(ctx context.Context, documentID string) (Job, error) {
	query := `
UPDATE extraction_jobs
SET state = $2, attempts = 0, attempt_token = '', last_error = NULL, next_attempt_at = NULL, updated_at = now()
WHERE document_id = $1::uuid AND state IN ($3, $4, $5)
RETURNING ` + jobColumns
	job, err := r.scan(r.DB.QueryRowContext(ctx, query, documentID, JobQueued, JobFailed, JobSucceeded, JobCancelled))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if _, getErr := r.GetByDocument(ctx, documentID); getErr == nil {
				return Job{}, ErrStale
			}
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

func (r *PGRepo) Cancel(ctx context.Context, jobID string) error {
	const query = `
UPDATE extraction_jobs
SET state = $2, attempt_token = '', next_attempt_at = NULL, updated_at = now()
WHERE id = $1::uuid AND state IN ($3, $4)`
	res, err := r.DB.ExecContext(ctx, query, jobID, JobCancelled, JobQueued, JobInProgress)
	if err != nil {
		return fmt.Errorf("cancel extraction job: %w", err)
	}
	return r.checkAffected(ctx, res, jobID)
}

func (r *PGRepo) execAttempt(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update extraction job: %w", err)
	}
	jobID, _ := args[0].(string)
	return r.checkAffected(ctx, res, jobID)
}

func (r *PGRepo) checkAffected(ctx context.Context, res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.missOrStale(ctx, jobID)
	}
	return nil
}

// missOrStale distinguishes a job that does not exist from a job owned by
// another attempt.
func (r *PGRepo) missOrStale(ctx context.Context, jobID string) error {
	if _, err := r.GetByID(ctx, jobID); err != nil {
		return err
	}
	return ErrStale
}

func (r *PGRepo) scan(row *sql.Row) (Job, error) {
	var job Job
	var nextAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.DocumentID, &job.State, &job.Attempts, &job.MaxAttempts,
		&job.AttemptToken, &job.LastError, &nextAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	if nextAt.Valid {
		at := nextAt.Time
		job.NextAttemptAt = &at
	}
	return job, nil
}

var _ Repo = (*PGRepo)(nil)
