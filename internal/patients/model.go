package patients

import "time"

// Patient is the owner of uploaded documents.
type Patient struct {
	ID          string
	FullName    string
	ExternalRef string
	CreatedAt   time.Time
}
