package extraction

import "errors"

var (
	// ErrNotFound marks a missing job.
	ErrNotFound = errors.New("extraction job not found")

	// ErrStale marks a write by an attempt that no longer owns the job.
	ErrStale = errors.New("extraction job owned by another attempt")

	// ErrServiceUnavailable is a transient extractor failure; the attempt
	// counts against the budget and the job is retried.
	ErrServiceUnavailable = errors.New("extraction service unavailable")

	// ErrMalformedOutput means the extractor responded with output we could
	// not parse. Permanent; a retry would get the same response.
	ErrMalformedOutput = errors.New("malformed extractor output")

	// ErrUnsupportedFormat is permanent; retrying cannot help.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)
