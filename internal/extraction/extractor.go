package extraction

import "context"

// Input is what an extractor gets to work with: the document's plain text
// plus enough identity to classify it.
type Input struct {
	DocumentID string
	FileName   string
	MimeType   string
	Text       string
}

// FieldResult is one extracted metadata field with the extractor's
// confidence in [0,1].
type FieldResult struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Result is a successful extraction: named fields plus a document type
// classification.
type Result struct {
	DocumentType   string                 `json:"documentType"`
	TypeConfidence float64                `json:"typeConfidence"`
	Fields         map[string]FieldResult `json:"fields"`
}

// Extractor abstracts the metadata extraction backend. Implementations
// return ErrServiceUnavailable, ErrUnsupportedFormat, or ErrMalformedOutput
// so callers can decide between retrying and failing permanently.
type Extractor interface {
	Extract(ctx context.Context, input Input) (Result, error)
}
