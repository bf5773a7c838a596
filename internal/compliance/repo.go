package compliance

import (
	"context"
	"errors"
)

// ErrNotFound means no result exists for the requested version.
var ErrNotFound = errors.New("not found")

// Repo stores compliance results per (document, version). Results are written
// once at commit time and never recomputed retroactively; a version that was
// superseded before evaluation completed simply has none.
type Repo interface {
	Save(ctx context.Context, result Result) error
	Get(ctx context.Context, documentID string, version int) (Result, error)
	Latest(ctx context.Context, documentID string) (Result, error)
}
