package documents

import "time"

// Field value sources.
const (
	SourceExtracted   = "extracted"
	SourceHumanEdited = "human-edited"
)

// Metadata version author kinds.
const (
	AuthorKindWorker   = "worker"
	AuthorKindReviewer = "reviewer"
)

// FieldValue is one structured metadata field with its provenance.
// Confidence is in [0,1]; 1.0 is reserved for human-confirmed values.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Fields maps field names to values.
type Fields map[string]FieldValue

// Clone returns a copy that shares nothing with the receiver.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// MetadataVersion is one immutable snapshot of a document's fields.
// Corrections never mutate a version; they append the next one.
type MetadataVersion struct {
	DocumentID string
	Version    int
	Fields     Fields
	AuthorID   string
	AuthorKind string
	CreatedAt  time.Time
}
