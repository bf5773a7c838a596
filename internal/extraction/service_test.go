package extraction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/queue"
	localstore "meddocs-backend/internal/shared/storage/object/local"
)

type extractorFunc func(context.Context, Input) (Result, error)

func (f extractorFunc) Extract(ctx context.Context, in Input) (Result, error) {
	return f(ctx, in)
}

type captureQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (q *captureQueue) Send(ctx context.Context, msg queue.Message) error {
	return q.SendDelayed(ctx, msg, 0)
}

func (q *captureQueue) SendDelayed(_ context.Context, msg queue.Message, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

func (q *captureQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func (q *captureQueue) last() queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.msgs[len(q.msgs)-1]
}

const sampleReport = "Patient Name: Jane Doe\nDocument Type: lab_report\nDate Of Report: 2026-03-01\nDiagnosis: hypertension"

type pipelineFixture struct {
	svc   *Service
	docs  *documents.MemoryRepo
	jobs  *MemoryRepo
	comp  *compliance.MemoryRepo
	queue *captureQueue
	doc   documents.Document
}

func newPipelineFixture(t *testing.T, extractor Extractor, maxAttempts int) *pipelineFixture {
	t.Helper()
	ctx := context.Background()

	store := localstore.New(t.TempDir())
	key, size, mime, err := store.Save(ctx, "patient-1", "lab-results.txt", strings.NewReader(sampleReport))
	if err != nil {
		t.Fatalf("store save: %v", err)
	}

	docs := documents.NewMemoryRepo()
	doc := documents.Document{
		ID:         "doc-1",
		PatientID:  "patient-1",
		UploaderID: "uploader-1",
		FileName:   "lab-results.txt",
		MimeType:   mime,
		SizeBytes:  size,
		StorageKey: key,
		State:      documents.StateUploaded,
		CreatedAt:  time.Now().UTC(),
	}
	if err := docs.Create(ctx, doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	jobs := NewMemoryRepo()
	comp := compliance.NewMemoryRepo()
	q := &captureQueue{}
	svc := &Service{
		Jobs:        jobs,
		Docs:        docs,
		Store:       store,
		Extractor:   extractor,
		Queue:       q,
		Compliance:  comp,
		MaxAttempts: maxAttempts,
	}
	return &pipelineFixture{svc: svc, docs: docs, jobs: jobs, comp: comp, queue: q, doc: doc}
}

// rewindJob clears the retry delay so the next ProcessJob call attempts
// immediately instead of re-enqueueing.
func rewindJob(t *testing.T, jobs *MemoryRepo, jobID string) {
	t.Helper()
	jobs.mu.Lock()
	defer jobs.mu.Unlock()
	job, ok := jobs.byID[jobID]
	if !ok {
		t.Fatalf("job %s not found", jobID)
	}
	job.NextAttemptAt = nil
	jobs.byID[jobID] = job
}

func TestProcessJobSuccess(t *testing.T) {
	ctx := context.Background()
	extractor := extractorFunc(func(_ context.Context, in Input) (Result, error) {
		if !strings.Contains(in.Text, "Jane Doe") {
			t.Fatalf("extractor did not receive document text: %q", in.Text)
		}
		return Result{
			DocumentType:   "lab_report",
			TypeConfidence: 0.9,
			Fields: map[string]FieldResult{
				"patient_name": {Value: "Jane Doe", Confidence: 0.95},
				"diagnosis":    {Value: "hypertension", Confidence: 1.7}, // clamped
			},
		}, nil
	})
	fx := newPipelineFixture(t, extractor, 5)

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	if fx.queue.len() != 1 {
		t.Fatalf("want 1 enqueued message, got %d", fx.queue.len())
	}

	msg := fx.queue.last()
	if err := fx.svc.ProcessJob(ctx, msg.JobID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.State != documents.StateProcessed || doc.CurrentVersion != 1 {
		t.Fatalf("after success: state=%s version=%d", doc.State, doc.CurrentVersion)
	}
	if doc.DocumentType != "lab_report" {
		t.Fatalf("document type not promoted: %q", doc.DocumentType)
	}

	version, err := fx.docs.GetMetadataVersion(ctx, fx.doc.ID, 1)
	if err != nil {
		t.Fatalf("get version 1: %v", err)
	}
	name := version.Fields["patient_name"]
	if name.Value != "Jane Doe" || name.Source != documents.SourceExtracted {
		t.Fatalf("unexpected patient_name: %+v", name)
	}
	if diag := version.Fields["diagnosis"]; diag.Confidence != 1 {
		t.Fatalf("confidence not clamped to 1: %+v", diag)
	}

	job, _ := fx.jobs.GetByID(ctx, msg.JobID)
	if job.State != JobSucceeded || job.Attempts != 1 {
		t.Fatalf("job after success: %+v", job)
	}

	verdict, err := fx.comp.Get(ctx, fx.doc.ID, 1)
	if err != nil {
		t.Fatalf("compliance verdict missing: %v", err)
	}
	if !verdict.Compliant {
		t.Fatalf("sample report should be compliant: %+v", verdict.Issues)
	}
}

func TestProcessJobRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	extractor := extractorFunc(func(context.Context, Input) (Result, error) {
		return Result{}, ErrServiceUnavailable
	})
	fx := newPipelineFixture(t, extractor, 2)

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID := fx.queue.last().JobID

	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("attempt 1: %v", err)
	}
	job, _ := fx.jobs.GetByID(ctx, jobID)
	if job.State != JobQueued || job.Attempts != 1 || job.NextAttemptAt == nil {
		t.Fatalf("after transient failure: %+v", job)
	}
	if fx.queue.len() != 2 {
		t.Fatalf("retry should re-enqueue, got %d messages", fx.queue.len())
	}
	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.State != documents.StateProcessing {
		t.Fatalf("document should stay processing between attempts, got %s", doc.State)
	}

	rewindJob(t, fx.jobs, jobID)
	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("attempt 2: %v", err)
	}

	job, _ = fx.jobs.GetByID(ctx, jobID)
	if job.State != JobFailed || job.Attempts != 2 {
		t.Fatalf("budget spent, job should be failed: %+v", job)
	}
	doc, _ = fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.State != documents.StateFailed {
		t.Fatalf("document should be failed, got %s", doc.State)
	}
	if !strings.Contains(doc.FailureReason, "unavailable") {
		t.Fatalf("failure reason should carry the cause: %q", doc.FailureReason)
	}
}

func TestProcessJobUnsupportedFormatFailsImmediately(t *testing.T) {
	ctx := context.Background()
	extractor := extractorFunc(func(context.Context, Input) (Result, error) {
		return Result{}, ErrUnsupportedFormat
	})
	fx := newPipelineFixture(t, extractor, 5)

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID := fx.queue.last().JobID

	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	job, _ := fx.jobs.GetByID(ctx, jobID)
	if job.State != JobFailed || job.Attempts != 1 {
		t.Fatalf("permanent failures must not burn retries: %+v", job)
	}
	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.State != documents.StateFailed {
		t.Fatalf("document should be failed, got %s", doc.State)
	}
}

func TestProcessJobDiscardsResultOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, nil, 5)

	// While extraction is in flight, a reviewer commits a version. The
	// slow worker result arrives afterwards and must be dropped.
	fx.svc.Extractor = extractorFunc(func(context.Context, Input) (Result, error) {
		_, err := fx.docs.CommitMetadataVersion(ctx, fx.doc.ID, 0, documents.Fields{
			"patient_name": {Value: "Corrected Name", Confidence: 1, Source: documents.SourceHumanEdited},
		}, "reviewer-1", documents.AuthorKindReviewer)
		if err != nil {
			t.Fatalf("reviewer commit: %v", err)
		}
		return Result{Fields: map[string]FieldResult{
			"patient_name": {Value: "Stale Name", Confidence: 0.8},
		}}, nil
	})

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID := fx.queue.last().JobID
	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.CurrentVersion != 1 {
		t.Fatalf("worker result must not add a version, got %d", doc.CurrentVersion)
	}
	version, _ := fx.docs.GetMetadataVersion(ctx, fx.doc.ID, 1)
	if version.Fields["patient_name"].Value != "Corrected Name" {
		t.Fatalf("reviewer edit clobbered: %+v", version.Fields)
	}
	job, _ := fx.jobs.GetByID(ctx, jobID)
	if job.State != JobSucceeded {
		t.Fatalf("discarded result still completes the job: %+v", job)
	}
}

func TestProcessJobDiscardsResultAfterCancel(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, nil, 5)

	var jobID string
	fx.svc.Extractor = extractorFunc(func(context.Context, Input) (Result, error) {
		if err := fx.jobs.Cancel(ctx, jobID); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		return Result{Fields: map[string]FieldResult{
			"patient_name": {Value: "Jane Doe", Confidence: 0.9},
		}}, nil
	})

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID = fx.queue.last().JobID
	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("process job: %v", err)
	}

	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.CurrentVersion != 0 {
		t.Fatalf("cancelled attempt must not commit, got version %d", doc.CurrentVersion)
	}
	job, _ := fx.jobs.GetByID(ctx, jobID)
	if job.State != JobCancelled {
		t.Fatalf("job should stay cancelled: %+v", job)
	}
}

func TestDuplicateDeliveryClaimsOnce(t *testing.T) {
	ctx := context.Background()
	calls := 0
	extractor := extractorFunc(func(context.Context, Input) (Result, error) {
		calls++
		return Result{Fields: map[string]FieldResult{
			"patient_name": {Value: "Jane Doe", Confidence: 0.9},
		}}, nil
	})
	fx := newPipelineFixture(t, extractor, 5)

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID := fx.queue.last().JobID

	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("duplicate delivery should be swallowed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("extractor ran %d times, want 1", calls)
	}
	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.CurrentVersion != 1 {
		t.Fatalf("duplicate delivery must not add versions, got %d", doc.CurrentVersion)
	}
}

func TestRestartExtractionAfterFailure(t *testing.T) {
	ctx := context.Background()
	healthy := false
	extractor := extractorFunc(func(context.Context, Input) (Result, error) {
		if !healthy {
			return Result{}, ErrServiceUnavailable
		}
		return Result{Fields: map[string]FieldResult{
			"patient_name": {Value: "Jane Doe", Confidence: 0.9},
		}}, nil
	})
	fx := newPipelineFixture(t, extractor, 1)

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	jobID := fx.queue.last().JobID
	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("failing attempt: %v", err)
	}
	if doc, _ := fx.docs.GetByID(ctx, fx.doc.ID); doc.State != documents.StateFailed {
		t.Fatalf("precondition: document should be failed, got %s", doc.State)
	}

	healthy = true
	if err := fx.svc.RestartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("restart: %v", err)
	}
	job, _ := fx.jobs.GetByID(ctx, jobID)
	if job.State != JobQueued || job.Attempts != 0 {
		t.Fatalf("restart should reset the budget: %+v", job)
	}

	if err := fx.svc.ProcessJob(ctx, jobID); err != nil {
		t.Fatalf("retry attempt: %v", err)
	}
	doc, _ := fx.docs.GetByID(ctx, fx.doc.ID)
	if doc.State != documents.StateProcessed || doc.CurrentVersion != 1 {
		t.Fatalf("after recovery: state=%s version=%d", doc.State, doc.CurrentVersion)
	}
}

func TestRestartExtractionWhileRunningConflicts(t *testing.T) {
	ctx := context.Background()
	fx := newPipelineFixture(t, nil, 5)

	fx.svc.Extractor = extractorFunc(func(context.Context, Input) (Result, error) {
		err := fx.svc.RestartExtraction(ctx, fx.doc.ID)
		if !errors.Is(err, documents.ErrConflict) {
			t.Fatalf("restart mid-flight: want ErrConflict, got %v", err)
		}
		return Result{Fields: map[string]FieldResult{
			"patient_name": {Value: "Jane Doe", Confidence: 0.9},
		}}, nil
	})

	if err := fx.svc.StartExtraction(ctx, fx.doc.ID); err != nil {
		t.Fatalf("start extraction: %v", err)
	}
	if err := fx.svc.ProcessJob(ctx, fx.queue.last().JobID); err != nil {
		t.Fatalf("process job: %v", err)
	}
}
