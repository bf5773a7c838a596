package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoTransitionStaleStateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs(string(StateProcessing), "doc-1", string(StateUploaded)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT retired FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"retired"}).AddRow(false))

	err = repo.Transition(context.Background(), "doc-1", StateUploaded, StateProcessing)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionRetired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs(string(StateProcessing), "doc-1", string(StateUploaded)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT retired FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"retired"}).AddRow(true))

	err = repo.Transition(context.Background(), "doc-1", StateUploaded, StateProcessing)
	if !errors.Is(err, ErrRetired) {
		t.Fatalf("want ErrRetired, got %v", err)
	}
}

func TestPGRepoTransitionIllegalWithoutQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	// Illegal transitions are rejected before touching the database.
	if err := repo.Transition(context.Background(), "doc-1", StateUploaded, StateFailed); !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCommitMetadataVersion(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	createdAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO metadata_versions").
		WithArgs("doc-1", 1, sqlmock.AnyArg(), "extractor", AuthorKindWorker).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))
	mock.ExpectCommit()

	fields := Fields{
		"patient_name": {Value: "Jane Doe", Confidence: 0.95, Source: SourceExtracted},
	}
	version, err := repo.CommitMetadataVersion(context.Background(), "doc-1", 0, fields, "extractor", AuthorKindWorker)
	if err != nil {
		t.Fatalf("CommitMetadataVersion: %v", err)
	}
	if version.Version != 1 || !version.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected version: %+v", version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCommitMetadataVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", 3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT retired FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"retired"}).AddRow(false))
	mock.ExpectRollback()

	_, err = repo.CommitMetadataVersion(context.Background(), "doc-1", 3, Fields{}, "rev-1", AuthorKindReviewer)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}
