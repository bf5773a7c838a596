package extraction

import (
	"context"
	"time"
)

// Repo persists extraction jobs. Writes that carry a token are conditional
// on the token still owning the job and return ErrStale otherwise.
type Repo interface {
	Create(ctx context.Context, job Job) error
	GetByID(ctx context.Context, jobID string) (Job, error)
	GetByDocument(ctx context.Context, documentID string) (Job, error)

	// BeginAttempt claims a queued job: increments attempts, stamps the new
	// token, and moves the job to in_progress. ErrStale when the job is not
	// queued or the budget is spent, so duplicate deliveries fall through.
	BeginAttempt(ctx context.Context, jobID, token string) (Job, error)

	MarkSucceeded(ctx context.Context, jobID, token string) error

	// MarkRetry returns the job to queued with the failure recorded and the
	// earliest time the next attempt may run.
	MarkRetry(ctx context.Context, jobID, token, lastError string, nextAttemptAt time.Time) error

	MarkFailed(ctx context.Context, jobID, token, lastError string) error

	// Requeue resets a terminal job for a fresh round of attempts.
	Requeue(ctx context.Context, documentID string) (Job, error)

	// Cancel invalidates the current token; an in-flight attempt's result
	// will be discarded when it reports back.
	Cancel(ctx context.Context, jobID string) error
}
