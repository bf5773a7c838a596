package extraction

import "time"

const (
	JobQueued     = "queued"
	JobInProgress = "in_progress"
	JobSucceeded  = "succeeded"
	JobFailed     = "failed"
	JobCancelled  = "cancelled"
)

// Job tracks the extraction attempts for one document. A document has at
// most one job; retries reuse it. AttemptToken identifies the attempt that
// currently owns the job, so results from superseded attempts are discarded.
type Job struct {
	ID            string
	DocumentID    string
	State         string
	Attempts      int
	MaxAttempts   int
	AttemptToken  string
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Exhausted reports whether the job has no attempts left.
func (j Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
