package patients

import "context"

// Repo defines persistence operations for patients.
type Repo interface {
	Create(ctx context.Context, p Patient) error
	GetByID(ctx context.Context, patientID string) (Patient, error)
	List(ctx context.Context) ([]Patient, error)
}
