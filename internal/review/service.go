// Package review lets a human correct extracted metadata. Every accepted
// edit becomes a new immutable metadata version; nothing is updated in
// place.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/doctext"
	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/shared/metrics"
	"meddocs-backend/internal/shared/storage/object"
	"meddocs-backend/internal/shared/telemetry"
)

// Edit is one reviewer-submitted field change. An empty value removes the
// field from the next version.
type Edit struct {
	Field string
	Value string
}

// Service applies reviewer edits on top of a specific metadata version.
type Service struct {
	Docs       documents.Repo
	Store      object.ObjectStore
	Compliance compliance.Repo
	Notifier   documents.Notifier
}

// ProposeEdit builds the next metadata version from baseVersion plus the
// reviewer's edits and commits it. Fields the reviewer does not touch are
// carried over unchanged, provenance included. ErrConflict when
// baseVersion is no longer current.
func (s *Service) ProposeEdit(ctx context.Context, documentID, reviewerID string, baseVersion int, edits []Edit) (documents.MetadataVersion, error) {
	if documentID == "" || reviewerID == "" {
		return documents.MetadataVersion{}, fmt.Errorf("%w: documentID and reviewerID are required", documents.ErrValidation)
	}
	if len(edits) == 0 {
		return documents.MetadataVersion{}, fmt.Errorf("%w: at least one edit is required", documents.ErrValidation)
	}
	if baseVersion < 1 {
		return documents.MetadataVersion{}, fmt.Errorf("%w: baseVersion must be at least 1", documents.ErrValidation)
	}

	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return documents.MetadataVersion{}, err
	}
	if doc.Retired {
		return documents.MetadataVersion{}, documents.ErrRetired
	}
	if doc.State != documents.StateProcessed {
		return documents.MetadataVersion{}, fmt.Errorf("%w: document is %s, not reviewable", documents.ErrConflict, doc.State)
	}

	base, err := s.Docs.GetMetadataVersion(ctx, documentID, baseVersion)
	if err != nil {
		return documents.MetadataVersion{}, err
	}

	fields := base.Fields.Clone()
	for _, edit := range edits {
		name := strings.TrimSpace(strings.ToLower(edit.Field))
		if name == "" {
			return documents.MetadataVersion{}, fmt.Errorf("%w: edit with empty field name", documents.ErrValidation)
		}
		value := strings.TrimSpace(edit.Value)
		if value == "" {
			delete(fields, name)
			continue
		}
		fields[name] = documents.FieldValue{
			Value:      value,
			Confidence: 1.0,
			Source:     documents.SourceHumanEdited,
		}
	}

	version, err := s.Docs.CommitMetadataVersion(ctx, documentID, baseVersion, fields, reviewerID, documents.AuthorKindReviewer)
	if err != nil {
		if errors.Is(err, documents.ErrConflict) {
			metrics.IncCommitConflict()
		}
		return documents.MetadataVersion{}, err
	}

	s.runCompliance(ctx, doc, version)

	telemetry.Info("review.edit_committed", map[string]any{
		"document_id": documentID,
		"reviewer_id": reviewerID,
		"version":     version.Version,
	})
	if s.Notifier != nil {
		s.Notifier.Publish(documentID)
	}
	return version, nil
}

// runCompliance re-evaluates the new version. Text extraction is
// best-effort here; field rules still run when the body cannot be read.
func (s *Service) runCompliance(ctx context.Context, doc documents.Document, version documents.MetadataVersion) {
	text, err := doctext.FromStore(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		telemetry.Warn("review.document_text", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		text = ""
	}

	result := compliance.Evaluate(version.Fields, text)
	result.DocumentID = doc.ID
	result.Version = version.Version
	if err := s.Compliance.Save(ctx, result); err != nil {
		telemetry.Error("compliance.save", map[string]any{
			"document_id": doc.ID,
			"version":     version.Version,
			"error":       err.Error(),
		})
		return
	}
	metrics.IncComplianceRun()
}
