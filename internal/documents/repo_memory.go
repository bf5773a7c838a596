package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores documents in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Document
	byPatient map[string][]string
	versions  map[string][]MetadataVersion
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Document),
		byPatient: make(map[string][]string),
		versions:  make(map[string][]MetadataVersion),
	}
}

// Create stores the document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[doc.ID] = doc
	r.byPatient[doc.PatientID] = append(r.byPatient[doc.PatientID], doc.ID)
	return nil
}

// GetByID returns a document by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListByPatient returns non-retired documents for a patient, newest first.
func (r *MemoryRepo) ListByPatient(ctx context.Context, patientID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.byPatient[patientID]))
	for _, id := range r.byPatient[patientID] {
		doc := r.byID[id]
		if doc.Retired {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Transition moves the document between lifecycle states with an optimistic
// state check.
func (r *MemoryRepo) Transition(ctx context.Context, documentID string, from, to State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	if doc.Retired {
		return ErrRetired
	}
	if doc.State != from {
		return ErrConflict
	}
	if !CanTransition(from, to) {
		return ErrConflict
	}
	doc.State = to
	if to == StateProcessing {
		doc.FailureReason = ""
	}
	doc.UpdatedAt = time.Now().UTC()
	r.byID[documentID] = doc
	return nil
}

// Fail moves a processing document to failed with a reason.
func (r *MemoryRepo) Fail(ctx context.Context, documentID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	if doc.State != StateProcessing {
		return ErrConflict
	}
	doc.State = StateFailed
	doc.FailureReason = reason
	doc.UpdatedAt = time.Now().UTC()
	r.byID[documentID] = doc
	return nil
}

// SetDocumentType records the classified document type.
func (r *MemoryRepo) SetDocumentType(ctx context.Context, documentID, documentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.DocumentType = documentType
	doc.UpdatedAt = time.Now().UTC()
	r.byID[documentID] = doc
	return nil
}

// CommitMetadataVersion appends the next metadata version if expectedVersion
// still matches, and atomically marks the document processed.
func (r *MemoryRepo) CommitMetadataVersion(ctx context.Context, documentID string, expectedVersion int, fields Fields, authorID, authorKind string) (MetadataVersion, error) {
	if err := ctx.Err(); err != nil {
		return MetadataVersion{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return MetadataVersion{}, ErrNotFound
	}
	if doc.Retired {
		return MetadataVersion{}, ErrRetired
	}
	if doc.CurrentVersion != expectedVersion {
		return MetadataVersion{}, ErrConflict
	}

	version := MetadataVersion{
		DocumentID: documentID,
		Version:    expectedVersion + 1,
		Fields:     fields.Clone(),
		AuthorID:   authorID,
		AuthorKind: authorKind,
		CreatedAt:  time.Now().UTC(),
	}
	r.versions[documentID] = append(r.versions[documentID], version)

	doc.CurrentVersion = version.Version
	doc.State = StateProcessed
	doc.FailureReason = ""
	doc.UpdatedAt = version.CreatedAt
	r.byID[documentID] = doc

	return version, nil
}

// GetMetadataVersion returns one version of a document's metadata.
func (r *MemoryRepo) GetMetadataVersion(ctx context.Context, documentID string, version int) (MetadataVersion, error) {
	if err := ctx.Err(); err != nil {
		return MetadataVersion{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions[documentID] {
		if v.Version == version {
			v.Fields = v.Fields.Clone()
			return v, nil
		}
	}
	return MetadataVersion{}, ErrNotFound
}

// MetadataHistory returns all versions of a document's metadata, oldest first.
func (r *MemoryRepo) MetadataHistory(ctx context.Context, documentID string) ([]MetadataVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := make([]MetadataVersion, 0, len(r.versions[documentID]))
	for _, v := range r.versions[documentID] {
		v.Fields = v.Fields.Clone()
		history = append(history, v)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].Version < history[j].Version
	})
	return history, nil
}

// Retire soft-retires the document.
func (r *MemoryRepo) Retire(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Retired = true
	doc.UpdatedAt = time.Now().UTC()
	r.byID[documentID] = doc
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
