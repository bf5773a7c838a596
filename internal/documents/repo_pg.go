package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `
id, patient_id, uploader_id, file_name, mime_type, size_bytes, storage_key,
document_type, state, current_version, failure_reason, notes, retired,
created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id, patient_id, uploader_id, file_name, mime_type, size_bytes, storage_key,
    document_type, state, current_version, failure_reason, notes, retired,
    created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $14)`

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.PatientID,
		doc.UploaderID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		doc.DocumentType,
		string(doc.State),
		doc.CurrentVersion,
		doc.FailureReason,
		doc.Notes,
		doc.Retired,
		doc.CreatedAt,
	)
	return err
}

// GetByID returns a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1::uuid LIMIT 1`
	return r.scanDocument(r.DB.QueryRowContext(ctx, query, documentID))
}

// ListByPatient returns non-retired documents for a patient, newest first.
func (r *PGRepo) ListByPatient(ctx context.Context, patientID string) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE patient_id = $1::uuid AND retired = FALSE
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Transition moves the document between lifecycle states with an optimistic
// state check done inside the UPDATE itself.
func (r *PGRepo) Transition(ctx context.Context, documentID string, from, to State) error {
	if !CanTransition(from, to) {
		return ErrConflict
	}
	const query = `
UPDATE documents
SET state = $1,
    failure_reason = CASE WHEN $1 = 'processing' THEN NULL ELSE failure_reason END,
    updated_at = now()
WHERE id = $2::uuid AND state = $3 AND retired = FALSE`

	res, err := r.DB.ExecContext(ctx, query, string(to), documentID, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missOrConflict(ctx, documentID)
	}
	return nil
}

// Fail moves a processing document to failed with a reason.
func (r *PGRepo) Fail(ctx context.Context, documentID, reason string) error {
	const query = `
UPDATE documents
SET state = 'failed',
    failure_reason = $1,
    updated_at = now()
WHERE id = $2::uuid AND state = 'processing' AND retired = FALSE`

	res, err := r.DB.ExecContext(ctx, query, reason, documentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missOrConflict(ctx, documentID)
	}
	return nil
}

// SetDocumentType records the classified document type.
func (r *PGRepo) SetDocumentType(ctx context.Context, documentID, documentType string) error {
	const query = `
UPDATE documents
SET document_type = NULLIF($1, ''),
    updated_at = now()
WHERE id = $2::uuid`

	res, err := r.DB.ExecContext(ctx, query, documentType, documentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitMetadataVersion performs the check-and-increment inside a transaction:
// the UPDATE only matches when current_version still equals expectedVersion,
// and the new version row is inserted in the same transaction.
func (r *PGRepo) CommitMetadataVersion(ctx context.Context, documentID string, expectedVersion int, fields Fields, authorID, authorKind string) (MetadataVersion, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return MetadataVersion{}, err
	}
	defer tx.Rollback()

	const bump = `
UPDATE documents
SET current_version = current_version + 1,
    state = 'processed',
    failure_reason = NULL,
    updated_at = now()
WHERE id = $1::uuid AND current_version = $2 AND retired = FALSE`

	res, err := tx.ExecContext(ctx, bump, documentID, expectedVersion)
	if err != nil {
		return MetadataVersion{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MetadataVersion{}, r.missOrConflict(ctx, documentID)
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return MetadataVersion{}, fmt.Errorf("marshal fields: %w", err)
	}

	const insert = `
INSERT INTO metadata_versions (document_id, version, fields, author_id, author_kind, created_at)
VALUES ($1::uuid, $2, $3::jsonb, $4, $5, now())
RETURNING created_at`

	version := MetadataVersion{
		DocumentID: documentID,
		Version:    expectedVersion + 1,
		Fields:     fields.Clone(),
		AuthorID:   authorID,
		AuthorKind: authorKind,
	}
	if err := tx.QueryRowContext(ctx, insert, documentID, version.Version, payload, authorID, authorKind).Scan(&version.CreatedAt); err != nil {
		return MetadataVersion{}, err
	}

	if err := tx.Commit(); err != nil {
		return MetadataVersion{}, err
	}
	return version, nil
}

// GetMetadataVersion returns one version of a document's metadata.
func (r *PGRepo) GetMetadataVersion(ctx context.Context, documentID string, version int) (MetadataVersion, error) {
	const query = `
SELECT document_id, version, fields, author_id, author_kind, created_at
FROM metadata_versions
WHERE document_id = $1::uuid AND version = $2
LIMIT 1`
	return scanVersion(r.DB.QueryRowContext(ctx, query, documentID, version))
}

// MetadataHistory returns all versions of a document's metadata, oldest first.
func (r *PGRepo) MetadataHistory(ctx context.Context, documentID string) ([]MetadataVersion, error) {
	const query = `
SELECT document_id, version, fields, author_id, author_kind, created_at
FROM metadata_versions
WHERE document_id = $1::uuid
ORDER BY version ASC`
	rows, err := r.DB.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetadataVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Retire soft-retires the document.
func (r *PGRepo) Retire(ctx context.Context, documentID string) error {
	const query = `UPDATE documents SET retired = TRUE, updated_at = now() WHERE id = $1::uuid`
	res, err := r.DB.ExecContext(ctx, query, documentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// missOrConflict distinguishes a missing document from a stale caller after
// a zero-row compare-and-set.
func (r *PGRepo) missOrConflict(ctx context.Context, documentID string) error {
	var retired bool
	err := r.DB.QueryRowContext(ctx, `SELECT retired FROM documents WHERE id = $1::uuid`, documentID).Scan(&retired)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if retired {
		return ErrRetired
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var state string
	var documentType sql.NullString
	var failureReason sql.NullString
	var notes sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.PatientID,
		&doc.UploaderID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&documentType,
		&state,
		&doc.CurrentVersion,
		&failureReason,
		&notes,
		&doc.Retired,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	doc.State = State(state)
	if documentType.Valid {
		doc.DocumentType = documentType.String
	}
	if failureReason.Valid {
		doc.FailureReason = failureReason.String
	}
	if notes.Valid {
		doc.Notes = notes.String
	}
	return doc, nil
}

func scanVersion(row rowScanner) (MetadataVersion, error) {
	var v MetadataVersion
	var payload []byte
	err := row.Scan(&v.DocumentID, &v.Version, &payload, &v.AuthorID, &v.AuthorKind, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MetadataVersion{}, ErrNotFound
		}
		return MetadataVersion{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v.Fields); err != nil {
			return MetadataVersion{}, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	return v, nil
}

var _ Repo = (*PGRepo)(nil)
