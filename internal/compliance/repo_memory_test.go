package compliance

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoSaveGetLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	if _, err := repo.Latest(ctx, "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest on empty repo: want ErrNotFound, got %v", err)
	}

	v1 := Result{DocumentID: "doc-1", Version: 1, Compliant: false, Issues: []Issue{{Title: "x", Severity: SeverityBlocking}}, EvaluatedAt: time.Now().UTC()}
	v2 := Result{DocumentID: "doc-1", Version: 2, Compliant: true, EvaluatedAt: time.Now().UTC()}
	if err := repo.Save(ctx, v1); err != nil {
		t.Fatalf("save v1: %v", err)
	}
	if err := repo.Save(ctx, v2); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	got, err := repo.Get(ctx, "doc-1", 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if got.Compliant || len(got.Issues) != 1 {
		t.Fatalf("v1 verdict changed: %+v", got)
	}

	latest, err := repo.Latest(ctx, "doc-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 2 || !latest.Compliant {
		t.Fatalf("want v2 compliant, got %+v", latest)
	}
}
