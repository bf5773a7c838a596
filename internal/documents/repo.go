package documents

import "context"

// Repo defines persistence operations for documents and their metadata
// versions. Transition and CommitMetadataVersion are the only write paths
// for lifecycle state; both are optimistic compare-and-set operations that
// return ErrConflict when the caller's view is stale.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	ListByPatient(ctx context.Context, patientID string) ([]Document, error)

	// Transition moves the document from -> to, failing with ErrConflict
	// unless the stored state equals from.
	Transition(ctx context.Context, documentID string, from, to State) error

	// Fail moves a processing document to failed with a human-readable reason.
	Fail(ctx context.Context, documentID, reason string) error

	// SetDocumentType records the classified document type.
	SetDocumentType(ctx context.Context, documentID, documentType string) error

	// CommitMetadataVersion appends version expectedVersion+1 and, atomically,
	// sets the document's state to processed and clears any failure reason.
	// ErrConflict when expectedVersion does not match the stored current version.
	CommitMetadataVersion(ctx context.Context, documentID string, expectedVersion int, fields Fields, authorID, authorKind string) (MetadataVersion, error)

	GetMetadataVersion(ctx context.Context, documentID string, version int) (MetadataVersion, error)
	MetadataHistory(ctx context.Context, documentID string) ([]MetadataVersion, error)

	// Retire soft-retires the document; the record is kept but excluded
	// from listings and rejects further writes.
	Retire(ctx context.Context, documentID string) error
}
