package compliance

import (
	"fmt"
	"sort"
	"time"

	"meddocs-backend/internal/documents"
)

// Evaluate runs the fixed rule set over a metadata version and the document's
// text. It is deterministic and side-effect-free, so callers may re-run it at
// any time without re-invoking extraction. A rule that panics contributes a
// single unknown-severity issue instead of aborting the evaluation.
func Evaluate(fields documents.Fields, documentText string) Result {
	result := Result{EvaluatedAt: time.Now().UTC()}
	for _, r := range rules {
		result.Issues = append(result.Issues, runRule(r, fields, documentText)...)
	}
	result.Compliant = true
	for _, issue := range result.Issues {
		if issue.Severity == SeverityBlocking {
			result.Compliant = false
			break
		}
	}
	return result
}

func runRule(r rule, fields documents.Fields, documentText string) (issues []Issue) {
	defer func() {
		if rec := recover(); rec != nil {
			issues = []Issue{{
				Title:       "rule evaluation failed",
				Description: fmt.Sprintf("rule %q could not evaluate this version: %v", r.name, rec),
				Severity:    SeverityUnknown,
			}}
		}
	}()
	return r.check(fields, documentText)
}

func sortedFieldNames(fields documents.Fields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
