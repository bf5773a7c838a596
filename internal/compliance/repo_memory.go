package compliance

import (
	"context"
	"sync"
)

type versionKey struct {
	documentID string
	version    int
}

// MemoryRepo stores compliance results in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	byKey    map[versionKey]Result
	latestBy map[string]int
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byKey:    make(map[versionKey]Result),
		latestBy: make(map[string]int),
	}
}

// Save stores the result and tracks the newest evaluated version.
func (r *MemoryRepo) Save(ctx context.Context, result Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[versionKey{result.DocumentID, result.Version}] = result
	if result.Version > r.latestBy[result.DocumentID] {
		r.latestBy[result.DocumentID] = result.Version
	}
	return nil
}

// Get returns the result for one version.
func (r *MemoryRepo) Get(ctx context.Context, documentID string, version int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.byKey[versionKey{documentID, version}]
	if !ok {
		return Result{}, ErrNotFound
	}
	return result, nil
}

// Latest returns the result for the newest evaluated version.
func (r *MemoryRepo) Latest(ctx context.Context, documentID string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	version, ok := r.latestBy[documentID]
	if !ok {
		return Result{}, ErrNotFound
	}
	return r.byKey[versionKey{documentID, version}], nil
}

var _ Repo = (*MemoryRepo)(nil)
