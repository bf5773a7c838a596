package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"meddocs-backend/internal/patients"
	"meddocs-backend/internal/shared/storage/object"
	"meddocs-backend/internal/shared/telemetry"
)

// Pipeline starts asynchronous extraction for a document. Implemented by the
// extraction service; documents never call the extractor directly.
type Pipeline interface {
	StartExtraction(ctx context.Context, documentID string) error
	RestartExtraction(ctx context.Context, documentID string) error
}

// Notifier is told about lifecycle changes so subscribers can re-read.
type Notifier interface {
	Publish(documentID string)
}

// Service contains business logic for documents.
type Service struct {
	Store    object.ObjectStore
	Repo     Repo
	Patients patients.Repo
	Pipeline Pipeline
	Notifier Notifier
}

// Upload saves the file to object storage, records the document in state
// uploaded, and kicks off asynchronous extraction.
func (s *Service) Upload(ctx context.Context, patientID, uploaderID, fileName, notes string, r io.Reader) (Document, error) {
	if patientID == "" || uploaderID == "" || fileName == "" {
		return Document{}, fmt.Errorf("%w: patientID, uploaderID and fileName are required", ErrValidation)
	}

	if _, err := s.Patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			return Document{}, fmt.Errorf("%w: unknown patient %s", ErrValidation, patientID)
		}
		return Document{}, fmt.Errorf("patient lookup: %w", err)
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, patientID, fileName, r)
	if err != nil {
		return Document{}, fmt.Errorf("store upload: %w", err)
	}

	doc := Document{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		UploaderID: uploaderID,
		FileName:   fileName,
		MimeType:   mimeType,
		SizeBytes:  size,
		StorageKey: storageKey,
		State:      StateUploaded,
		Notes:      notes,
		CreatedAt:  time.Now().UTC(),
	}
	doc.UpdatedAt = doc.CreatedAt

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("create document: %w", err)
	}

	if err := s.Pipeline.StartExtraction(ctx, doc.ID); err != nil {
		return Document{}, fmt.Errorf("start extraction: %w", err)
	}

	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
		"uploader_id": doc.UploaderID,
		"mime_type":   doc.MimeType,
		"size_bytes":  doc.SizeBytes,
	})
	s.notify(doc.ID)

	return doc, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (Document, error) {
	if documentID == "" {
		return Document{}, fmt.Errorf("%w: documentID is required", ErrValidation)
	}
	return s.Repo.GetByID(ctx, documentID)
}

// ListByPatient returns a patient's documents, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Document, error) {
	if patientID == "" {
		return nil, fmt.Errorf("%w: patientID is required", ErrValidation)
	}
	return s.Repo.ListByPatient(ctx, patientID)
}

// Metadata returns the field mapping at the given version, or the current
// version when version is 0.
func (s *Service) Metadata(ctx context.Context, documentID string, version int) (MetadataVersion, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return MetadataVersion{}, err
	}
	if version == 0 {
		version = doc.CurrentVersion
	}
	if version == 0 {
		return MetadataVersion{}, ErrNotFound
	}
	return s.Repo.GetMetadataVersion(ctx, documentID, version)
}

// History returns every metadata version for a document, oldest first.
func (s *Service) History(ctx context.Context, documentID string) ([]MetadataVersion, error) {
	if _, err := s.Repo.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return s.Repo.MetadataHistory(ctx, documentID)
}

// Retry re-enqueues extraction for a failed document. The document stays
// failed until a worker picks the job up and transitions it to processing.
func (s *Service) Retry(ctx context.Context, documentID string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.State != StateFailed {
		return Document{}, fmt.Errorf("%w: document is %s, retry requires failed", ErrConflict, doc.State)
	}
	if err := s.Pipeline.RestartExtraction(ctx, documentID); err != nil {
		return Document{}, fmt.Errorf("restart extraction: %w", err)
	}
	telemetry.Info("document.retry", map[string]any{"document_id": documentID})
	s.notify(documentID)
	return doc, nil
}

// Reprocess re-runs extraction on an already processed document, typically
// after a correction that invalidates machine-extracted fields.
func (s *Service) Reprocess(ctx context.Context, documentID string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.State != StateProcessed {
		return Document{}, fmt.Errorf("%w: document is %s, reprocess requires processed", ErrConflict, doc.State)
	}
	if err := s.Pipeline.RestartExtraction(ctx, documentID); err != nil {
		return Document{}, fmt.Errorf("restart extraction: %w", err)
	}
	telemetry.Info("document.reprocess", map[string]any{"document_id": documentID})
	s.notify(documentID)
	return doc, nil
}

// Retire soft-retires a document.
func (s *Service) Retire(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("%w: documentID is required", ErrValidation)
	}
	if err := s.Repo.Retire(ctx, documentID); err != nil {
		return err
	}
	telemetry.Info("document.retired", map[string]any{"document_id": documentID})
	s.notify(documentID)
	return nil
}

func (s *Service) notify(documentID string) {
	if s.Notifier != nil {
		s.Notifier.Publish(documentID)
	}
}
