package patients

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores patients in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Patient
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Patient)}
}

// Create stores the patient.
func (r *MemoryRepo) Create(ctx context.Context, p Patient) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	return nil
}

// GetByID returns a patient by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, patientID string) (Patient, error) {
	if err := ctx.Err(); err != nil {
		return Patient{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[patientID]
	if !ok {
		return Patient{}, ErrNotFound
	}
	return p, nil
}

// List returns every patient, newest first.
func (r *MemoryRepo) List(ctx context.Context) ([]Patient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Patient, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
