package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Save inserts the result for one (document, version).
func (r *PGRepo) Save(ctx context.Context, result Result) error {
	const query = `
INSERT INTO compliance_results (document_id, version, compliant, issues, evaluated_at)
VALUES ($1::uuid, $2, $3, $4::jsonb, $5)
ON CONFLICT (document_id, version) DO NOTHING`

	issues := result.Issues
	if issues == nil {
		issues = []Issue{}
	}
	payload, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query, result.DocumentID, result.Version, result.Compliant, payload, result.EvaluatedAt)
	return err
}

// Get returns the result for one version.
func (r *PGRepo) Get(ctx context.Context, documentID string, version int) (Result, error) {
	const query = `
SELECT document_id, version, compliant, issues, evaluated_at
FROM compliance_results
WHERE document_id = $1::uuid AND version = $2
LIMIT 1`
	return r.scan(r.DB.QueryRowContext(ctx, query, documentID, version))
}

// Latest returns the result for the newest evaluated version.
func (r *PGRepo) Latest(ctx context.Context, documentID string) (Result, error) {
	const query = `
SELECT document_id, version, compliant, issues, evaluated_at
FROM compliance_results
WHERE document_id = $1::uuid
ORDER BY version DESC
LIMIT 1`
	return r.scan(r.DB.QueryRowContext(ctx, query, documentID))
}

func (r *PGRepo) scan(row *sql.Row) (Result, error) {
	var result Result
	var payload []byte
	err := row.Scan(&result.DocumentID, &result.Version, &result.Compliant, &payload, &result.EvaluatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &result.Issues); err != nil {
			return Result{}, fmt.Errorf("unmarshal issues: %w", err)
		}
	}
	return result, nil
}

var _ Repo = (*PGRepo)(nil)
