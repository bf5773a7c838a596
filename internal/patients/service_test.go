package patients

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Repo: NewMemoryRepo()}

	created, err := svc.Register(ctx, "  Jane Doe  ", " mrn-001 ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.ID == "" {
		t.Fatal("missing assigned id")
	}
	if created.FullName != "Jane Doe" || created.ExternalRef != "mrn-001" {
		t.Fatalf("fields not trimmed: %+v", created)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FullName != "Jane Doe" {
		t.Fatalf("got %+v", got)
	}
}

func TestRegisterRequiresName(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	if _, err := svc.Register(context.Background(), "   ", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc := &Service{Repo: NewMemoryRepo()}

	first, err := svc.Register(ctx, "Jane Doe", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := svc.Register(ctx, "John Roe", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	all, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d patients", len(all))
	}
	ids := map[string]bool{all[0].ID: true, all[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Fatalf("missing patients: %+v", all)
	}
}

func TestGetUnknownPatient(t *testing.T) {
	svc := &Service{Repo: NewMemoryRepo()}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
