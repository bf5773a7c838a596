package documents

import "time"

// State is a document's lifecycle state.
type State string

const (
	StateUploaded   State = "uploaded"
	StateProcessing State = "processing"
	StateProcessed  State = "processed"
	StateFailed     State = "failed"
)

// legalTransitions enumerates every edge of the lifecycle state machine.
// processed->processing covers re-extraction after a correction and
// failed->processing covers a manual retry.
var legalTransitions = map[State][]State{
	StateUploaded:   {StateProcessing},
	StateProcessing: {StateProcessed, StateFailed},
	StateProcessed:  {StateProcessing},
	StateFailed:     {StateProcessing},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to State) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document represents one uploaded clinical file and its processing record.
// CurrentVersion is 0 until the first metadata version is committed.
type Document struct {
	ID             string
	PatientID      string
	UploaderID     string
	FileName       string
	MimeType       string
	SizeBytes      int64
	StorageKey     string
	DocumentType   string
	State          State
	CurrentVersion int
	FailureReason  string
	Notes          string
	Retired        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
