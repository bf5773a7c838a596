package compliance

import "time"

// Issue severities, in ascending order of concern. Unknown is reserved for
// rules that failed to evaluate.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityBlocking = "blocking"
	SeverityUnknown  = "unknown"
)

// Issue is one finding from a compliance rule.
type Issue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Result is the outcome of evaluating one metadata version.
// Compliant means no blocking issues; everything else is advisory.
type Result struct {
	DocumentID  string    `json:"documentId"`
	Version     int       `json:"version"`
	Compliant   bool      `json:"compliant"`
	Issues      []Issue   `json:"issues"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// Summary is the compact projection exposed by the status endpoint.
type Summary struct {
	Compliant  bool `json:"compliant"`
	IssueCount int  `json:"issueCount"`
	Blocking   int  `json:"blocking"`
}

// Summarize reduces a result to its status projection.
func (r Result) Summarize() Summary {
	s := Summary{Compliant: r.Compliant, IssueCount: len(r.Issues)}
	for _, issue := range r.Issues {
		if issue.Severity == SeverityBlocking {
			s.Blocking++
		}
	}
	return s
}
