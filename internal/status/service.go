package status

import (
	"context"
	"errors"
	"time"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/documents"
)

// Snapshot is the client-facing view of where a document is in its
// lifecycle. Compliance is present once the current version has been
// evaluated.
type Snapshot struct {
	DocumentID     string              `json:"documentId"`
	State          string              `json:"state"`
	CurrentVersion int                 `json:"currentVersion"`
	FailureReason  string              `json:"failureReason,omitempty"`
	Compliance     *compliance.Summary `json:"compliance,omitempty"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Service assembles status snapshots.
type Service struct {
	Docs       documents.Repo
	Compliance compliance.Repo
}

// Snapshot reads the document and its latest compliance verdict.
func (s *Service) Snapshot(ctx context.Context, documentID string) (Snapshot, error) {
	doc, err := s.Docs.GetByID(ctx, documentID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		DocumentID:     doc.ID,
		State:          string(doc.State),
		CurrentVersion: doc.CurrentVersion,
		FailureReason:  doc.FailureReason,
		UpdatedAt:      doc.UpdatedAt,
	}

	result, err := s.Compliance.Latest(ctx, documentID)
	if err != nil {
		if errors.Is(err, compliance.ErrNotFound) {
			return snap, nil
		}
		return Snapshot{}, err
	}
	if result.Version == doc.CurrentVersion {
		summary := result.Summarize()
		snap.Compliance = &summary
	}
	return snap, nil
}
