package extraction

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo used in dev mode and in tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	byID  map[string]Job
	byDoc map[string]string
}

// NewMemoryRepo constructs an empty in-memory job store.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:  make(map[string]Job),
		byDoc: make(map[string]string),
	}
}

func (m *MemoryRepo) Create(ctx context.Context, job Job) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.byID[job.ID] = job
	m.byDoc[job.DocumentID] = job.ID
	return nil
}

func (m *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (m *MemoryRepo) GetByDocument(ctx context.Context, documentID string) (Job, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobID, ok := m.byDoc[documentID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return m.byID[jobID], nil
}

func (m *MemoryRepo) BeginAttempt(ctx context.Context, jobID, token string) (Job, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.State != JobQueued || job.Attempts >= job.MaxAttempts {
		return Job{}, ErrStale
	}
	job.State = JobInProgress
	job.Attempts++
	job.AttemptToken = token
	job.NextAttemptAt = nil
	job.UpdatedAt = time.Now().UTC()
	m.byID[jobID] = job
	return job, nil
}

func (m *MemoryRepo) MarkSucceeded(ctx context.Context, jobID, token string) error {
	_ = ctx
	return m.finishAttempt(jobID, token, func(job *Job) {
		job.State = JobSucceeded
		job.LastError = ""
		job.NextAttemptAt = nil
	})
}

func (m *MemoryRepo) MarkRetry(ctx context.Context, jobID, token, lastError string, nextAttemptAt time.Time) error {
	_ = ctx
	return m.finishAttempt(jobID, token, func(job *Job) {
		job.State = JobQueued
		job.LastError = lastError
		at := nextAttemptAt
		job.NextAttemptAt = &at
	})
}

func (m *MemoryRepo) MarkFailed(ctx context.Context, jobID, token, lastError string) error {
	_ = ctx
	return m.finishAttempt(jobID, token, func(job *Job) {
		job.State = JobFailed
		job.LastError = lastError
		job.NextAttemptAt = nil
	})
}

func (m *MemoryRepo) finishAttempt(jobID, token string, apply func(job *Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.State != JobInProgress || job.AttemptToken != token {
		return ErrStale
	}
	apply(&job)
	job.UpdatedAt = time.Now().UTC()
	m.byID[jobID] = job
	return nil
}

func (m *MemoryRepo) Requeue(ctx context.Context, documentID string) (Job, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	jobID, ok := m.byDoc[documentID]
	if !ok {
		return Job{}, ErrNotFound
	}
	job := m.byID[jobID]
	switch job.State {
	case JobFailed, JobSucceeded, JobCancelled:
	default:
		return Job{}, ErrStale
	}
	job.State = JobQueued
	job.Attempts = 0
	job.AttemptToken = ""
	job.LastError = ""
	job.NextAttemptAt = nil
	job.UpdatedAt = time.Now().UTC()
	m.byID[jobID] = job
	return job, nil
}

func (m *MemoryRepo) Cancel(ctx context.Context, jobID string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	switch job.State {
	case JobQueued, JobInProgress:
	default:
		return ErrStale
	}
	job.State = JobCancelled
	job.AttemptToken = ""
	job.NextAttemptAt = nil
	job.UpdatedAt = time.Now().UTC()
	m.byID[jobID] = job
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
