package patients

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new patient.
func (r *PGRepo) Create(ctx context.Context, p Patient) error {
	const query = `
INSERT INTO patients (id, full_name, external_ref, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4)`
	_, err := r.DB.ExecContext(ctx, query, p.ID, p.FullName, p.ExternalRef, p.CreatedAt)
	return err
}

// GetByID returns a patient by ID.
func (r *PGRepo) GetByID(ctx context.Context, patientID string) (Patient, error) {
	const query = `
SELECT id, full_name, external_ref, created_at
FROM patients
WHERE id = $1::uuid
LIMIT 1`
	var p Patient
	var externalRef sql.NullString
	err := r.DB.QueryRowContext(ctx, query, patientID).Scan(&p.ID, &p.FullName, &externalRef, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Patient{}, ErrNotFound
		}
		return Patient{}, err
	}
	if externalRef.Valid {
		p.ExternalRef = externalRef.String
	}
	return p, nil
}

// List returns every patient, newest first.
func (r *PGRepo) List(ctx context.Context) ([]Patient, error) {
	const query = `
SELECT id, full_name, external_ref, created_at
FROM patients
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var p Patient
		var externalRef sql.NullString
		if err := rows.Scan(&p.ID, &p.FullName, &externalRef, &p.CreatedAt); err != nil {
			return nil, err
		}
		if externalRef.Valid {
			p.ExternalRef = externalRef.String
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
