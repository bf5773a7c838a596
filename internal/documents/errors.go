package documents

import "errors"

var (
	// ErrNotFound means the document or version does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means the caller's assumed state or version is stale;
	// re-read and retry.
	ErrConflict = errors.New("conflict")
	// ErrValidation means the request was malformed and will not be retried.
	ErrValidation = errors.New("validation failed")
	// ErrRetired means the document was soft-retired and rejects writes.
	ErrRetired = errors.New("document retired")
)
