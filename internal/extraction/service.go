package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/doctext"
	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/queue"
	"meddocs-backend/internal/shared/metrics"
	"meddocs-backend/internal/shared/storage/object"
	"meddocs-backend/internal/shared/telemetry"
)

const (
	// typePromotionFloor is the minimum classification confidence required
	// before the document type is written onto the document record.
	typePromotionFloor = 0.5

	defaultMaxAttempts = 5
	extractorAuthorID  = "extractor"
)

// Service owns the extraction job lifecycle. It implements
// documents.Pipeline for enqueueing and is driven by the queue worker
// through ProcessJob.
type Service struct {
	Jobs        Repo
	Docs        documents.Repo
	Store       object.ObjectStore
	Extractor   Extractor
	Queue       queue.Client
	Compliance  compliance.Repo
	Notifier    documents.Notifier
	MaxAttempts int
}

// StartExtraction records a queued job for a freshly uploaded document and
// makes it visible to workers.
func (s *Service) StartExtraction(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.New("documentID is required")
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	job := Job{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		State:       JobQueued,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("create extraction job: %w", err)
	}
	return s.enqueue(ctx, job, 0)
}

// RestartExtraction resets a terminal job and re-enqueues it. Used by
// manual retry of failed documents and by reprocessing of processed ones.
func (s *Service) RestartExtraction(ctx context.Context, documentID string) error {
	job, err := s.Jobs.Requeue(ctx, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.StartExtraction(ctx, documentID)
		}
		if errors.Is(err, ErrStale) {
			return fmt.Errorf("%w: extraction already running", documents.ErrConflict)
		}
		return fmt.Errorf("requeue extraction job: %w", err)
	}
	metrics.IncExtractionRetried()
	return s.enqueue(ctx, job, 0)
}

// CancelExtraction invalidates any in-flight attempt for the document.
func (s *Service) CancelExtraction(ctx context.Context, documentID string) error {
	job, err := s.Jobs.GetByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.Jobs.Cancel(ctx, job.ID); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if s.Queue == nil {
		// Dev mode without a broker: process in-process after the delay.
		go func(jobID string, wait time.Duration) {
			if wait > 0 {
				time.Sleep(wait)
			}
			if err := s.ProcessJob(backgroundWithRequestID(ctx), jobID); err != nil {
				telemetry.Error("extraction.inline", map[string]any{"job_id": jobID, "error": err.Error()})
			}
		}(job.ID, delay)
		return nil
	}

	msg := queue.Message{
		JobID:      job.ID,
		DocumentID: job.DocumentID,
		RequestID:  requestIDFromContext(ctx),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	}
	if err := s.Queue.SendDelayed(ctx, msg, delay); err != nil {
		return fmt.Errorf("enqueue extraction job: %w", err)
	}
	return nil
}

// ProcessJob runs one extraction attempt. Deliveries are at-least-once, so
// anything that cannot claim the job is dropped silently.
func (s *Service) ProcessJob(ctx context.Context, jobID string) error {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.NextAttemptAt != nil {
		if wait := time.Until(*job.NextAttemptAt); wait > 0 {
			// Delivered early; push it back out.
			return s.enqueue(ctx, job, wait)
		}
	}

	token := uuid.NewString()
	job, err = s.Jobs.BeginAttempt(ctx, jobID, token)
	if err != nil {
		if errors.Is(err, ErrStale) {
			telemetry.Info("extraction.skip", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"job_id":     jobID,
			})
			return nil
		}
		return err
	}

	doc, err := s.Docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return s.finishAttempt(ctx, job, token, documents.Document{}, err, errors.Is(err, documents.ErrNotFound))
	}

	if doc.State != documents.StateProcessing {
		if err := s.Docs.Transition(ctx, doc.ID, doc.State, documents.StateProcessing); err != nil {
			return s.finishAttempt(ctx, job, token, doc, fmt.Errorf("enter processing: %w", err), errors.Is(err, documents.ErrRetired))
		}
		s.logTransition(ctx, doc, string(doc.State)+"->"+string(documents.StateProcessing))
		s.notify(doc.ID)
	}

	metrics.IncExtractionStarted()
	startedAt := time.Now().UTC()

	text, err := doctext.FromStore(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return s.finishAttempt(ctx, job, token, doc, err, errors.Is(err, doctext.ErrUnsupported))
	}

	result, err := s.Extractor.Extract(ctx, Input{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		Text:       text,
	})
	if err != nil {
		permanent := errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrMalformedOutput)
		return s.finishAttempt(ctx, job, token, doc, err, permanent)
	}

	// The extractor may have run for a while; drop the result if the
	// attempt was cancelled or superseded in the meantime.
	current, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if current.State != JobInProgress || current.AttemptToken != token {
		telemetry.Info("extraction.result_discarded", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"job_id":      jobID,
			"document_id": doc.ID,
		})
		return nil
	}

	fields := normalizeFields(result.Fields)
	version, err := s.Docs.CommitMetadataVersion(ctx, doc.ID, doc.CurrentVersion, fields, extractorAuthorID, documents.AuthorKindWorker)
	if err != nil {
		if errors.Is(err, documents.ErrConflict) {
			// A newer version landed while we were extracting; the stale
			// result must not clobber it.
			metrics.IncCommitConflict()
			telemetry.Info("extraction.result_discarded", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"job_id":      jobID,
				"document_id": doc.ID,
				"reason":      "version conflict",
			})
			return s.Jobs.MarkSucceeded(ctx, jobID, token)
		}
		return s.finishAttempt(ctx, job, token, doc, fmt.Errorf("commit metadata: %w", err), false)
	}

	if result.DocumentType != "" && result.TypeConfidence >= typePromotionFloor {
		if err := s.Docs.SetDocumentType(ctx, doc.ID, result.DocumentType); err != nil {
			telemetry.Warn("extraction.set_type", map[string]any{
				"document_id": doc.ID,
				"error":       err.Error(),
			})
		}
	}

	s.runCompliance(ctx, doc.ID, version, text)

	if err := s.Jobs.MarkSucceeded(ctx, jobID, token); err != nil {
		if errors.Is(err, ErrStale) {
			return nil
		}
		return err
	}

	metrics.IncExtractionCompleted()
	metrics.ObserveExtractionDurationMs(float64(time.Since(startedAt).Milliseconds()))
	s.logTransition(ctx, doc, string(documents.StateProcessing)+"->"+string(documents.StateProcessed))
	s.notify(doc.ID)
	return nil
}

// finishAttempt records a failed attempt: permanent failures and exhausted
// budgets go terminal, everything else is scheduled for another attempt.
func (s *Service) finishAttempt(ctx context.Context, job Job, token string, doc documents.Document, cause error, permanent bool) error {
	reason := cause.Error()

	if permanent || job.Exhausted() {
		if !permanent {
			reason = "retry budget exhausted: " + reason
		}
		if err := s.Jobs.MarkFailed(ctx, job.ID, token, reason); err != nil {
			if errors.Is(err, ErrStale) {
				return nil
			}
			return err
		}
		if doc.ID != "" {
			if err := s.Docs.Fail(ctx, doc.ID, reason); err != nil && !errors.Is(err, documents.ErrConflict) {
				telemetry.Error("extraction.mark_document_failed", map[string]any{"document_id": doc.ID, "error": err.Error()})
			}
			s.logTransition(ctx, doc, string(documents.StateProcessing)+"->"+string(documents.StateFailed))
			s.notify(doc.ID)
		}
		metrics.IncExtractionFailed()
		telemetry.Error("extraction.failed", map[string]any{
			"error":       reason,
			"request_id":  requestIDFromContext(ctx),
			"job_id":      job.ID,
			"document_id": job.DocumentID,
			"attempts":    job.Attempts,
			"permanent":   permanent,
		})
		return nil
	}

	delay := NextDelay(job.Attempts)
	nextAt := time.Now().UTC().Add(delay)
	if err := s.Jobs.MarkRetry(ctx, job.ID, token, reason, nextAt); err != nil {
		if errors.Is(err, ErrStale) {
			return nil
		}
		return err
	}
	metrics.IncExtractionRetried()
	telemetry.Warn("extraction.retry", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"attempt":     job.Attempts,
		"delay_ms":    delay.Milliseconds(),
		"error":       reason,
	})
	return s.enqueue(ctx, job, delay)
}

func (s *Service) runCompliance(ctx context.Context, documentID string, version documents.MetadataVersion, text string) {
	result := compliance.Evaluate(version.Fields, text)
	result.DocumentID = documentID
	result.Version = version.Version
	if err := s.Compliance.Save(ctx, result); err != nil {
		telemetry.Error("compliance.save", map[string]any{
			"document_id": documentID,
			"version":     version.Version,
			"error":       err.Error(),
		})
		return
	}
	metrics.IncComplianceRun()
}

func (s *Service) logTransition(ctx context.Context, doc documents.Document, transition string) {
	telemetry.Info("document.state", map[string]any{
		"request_id":       requestIDFromContext(ctx),
		"document_id":      doc.ID,
		"patient_id":       doc.PatientID,
		"state_transition": transition,
	})
}

func (s *Service) notify(documentID string) {
	if s.Notifier != nil {
		s.Notifier.Publish(documentID)
	}
}

// normalizeFields trims names, clamps confidences into [0,1], and stamps
// the extracted provenance.
func normalizeFields(raw map[string]FieldResult) documents.Fields {
	fields := make(documents.Fields, len(raw))
	for name, fr := range raw {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || strings.TrimSpace(fr.Value) == "" {
			continue
		}
		confidence := fr.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		fields[name] = documents.FieldValue{
			Value:      strings.TrimSpace(fr.Value),
			Confidence: confidence,
			Source:     documents.SourceExtracted,
		}
	}
	return fields
}

var _ documents.Pipeline = (*Service)(nil)
