package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for the patient registry.
type Service struct {
	Repo Repo
}

// Register records a new patient and returns the assigned ID.
func (s *Service) Register(ctx context.Context, fullName, externalRef string) (Patient, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return Patient{}, fmt.Errorf("%w: fullName is required", ErrValidation)
	}

	p := Patient{
		ID:          uuid.NewString(),
		FullName:    fullName,
		ExternalRef: strings.TrimSpace(externalRef),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return Patient{}, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// Get returns a patient by ID.
func (s *Service) Get(ctx context.Context, patientID string) (Patient, error) {
	if patientID == "" {
		return Patient{}, fmt.Errorf("%w: patientID is required", ErrValidation)
	}
	return s.Repo.GetByID(ctx, patientID)
}

// List returns every registered patient, newest first.
func (s *Service) List(ctx context.Context) ([]Patient, error) {
	return s.Repo.List(ctx)
}
