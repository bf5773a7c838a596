package compliance

import (
	"fmt"
	"regexp"
	"strings"

	"meddocs-backend/internal/documents"
)

// ConfidenceFloor is the minimum extraction confidence below which a field
// is flagged for human review.
const ConfidenceFloor = 0.7

type rule struct {
	name  string
	check func(fields documents.Fields, documentText string) []Issue
}

// rules run in a fixed order so evaluation is deterministic.
var rules = []rule{
	{name: "required-fields", check: checkRequiredFields},
	{name: "confidence-floor", check: checkConfidenceFloor},
	{name: "unredacted-identifiers", check: checkUnredactedIdentifiers},
	{name: "phi-in-free-text", check: checkPHIInFreeText},
}

// requiredFields must be present and non-empty for a record to be usable.
var requiredFields = []string{"patient_name"}

// recommendedFields are expected on a complete record but their absence is
// not blocking.
var recommendedFields = []string{"document_type", "date_of_report"}

// permittedIdentifierFields may legitimately hold patient identifiers.
var permittedIdentifierFields = map[string]struct{}{
	"patient_id": {},
	"mrn":        {},
}

var identifierPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"mrn", regexp.MustCompile(`(?i)\bMRN[:#\s]*\d{6,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`)},
}

func checkRequiredFields(fields documents.Fields, _ string) []Issue {
	var issues []Issue
	for _, name := range requiredFields {
		if fv, ok := fields[name]; !ok || strings.TrimSpace(fv.Value) == "" {
			issues = append(issues, Issue{
				Title:       "missing required field",
				Description: fmt.Sprintf("field %q is required but absent or empty", name),
				Severity:    SeverityBlocking,
			})
		}
	}
	for _, name := range recommendedFields {
		if fv, ok := fields[name]; !ok || strings.TrimSpace(fv.Value) == "" {
			issues = append(issues, Issue{
				Title:       "missing recommended field",
				Description: fmt.Sprintf("field %q is expected on a complete record", name),
				Severity:    SeverityInfo,
			})
		}
	}
	return issues
}

func checkConfidenceFloor(fields documents.Fields, _ string) []Issue {
	var issues []Issue
	for _, name := range sortedFieldNames(fields) {
		fv := fields[name]
		if fv.Source == documents.SourceHumanEdited {
			continue
		}
		if fv.Confidence < ConfidenceFloor {
			issues = append(issues, Issue{
				Title:       "low extraction confidence",
				Description: fmt.Sprintf("field %q was extracted with confidence %.2f, below the %.2f floor", name, fv.Confidence, ConfidenceFloor),
				Severity:    SeverityWarning,
			})
		}
	}
	return issues
}

func checkUnredactedIdentifiers(fields documents.Fields, documentText string) []Issue {
	var issues []Issue
	for _, pattern := range identifierPatterns {
		if pattern.re.MatchString(documentText) {
			issues = append(issues, Issue{
				Title:       "unredacted identifier in document text",
				Description: fmt.Sprintf("document text contains an unredacted %s", pattern.label),
				Severity:    SeverityBlocking,
			})
		}
	}
	for _, name := range sortedFieldNames(fields) {
		if _, permitted := permittedIdentifierFields[name]; permitted {
			continue
		}
		fv := fields[name]
		for _, pattern := range identifierPatterns {
			if pattern.re.MatchString(fv.Value) {
				issues = append(issues, Issue{
					Title:       "identifier outside permitted fields",
					Description: fmt.Sprintf("field %q contains an unredacted %s", name, pattern.label),
					Severity:    SeverityBlocking,
				})
			}
		}
	}
	return issues
}

func checkPHIInFreeText(fields documents.Fields, _ string) []Issue {
	summary, ok := fields["summary"]
	if !ok {
		return nil
	}
	lowered := strings.ToLower(summary.Value)
	for _, marker := range []string{"ssn", "social security", "date of birth", "dob"} {
		if strings.Contains(lowered, marker) {
			return []Issue{{
				Title:       "possible PHI in summary",
				Description: fmt.Sprintf("summary mentions %q; confirm it is appropriate for the record", marker),
				Severity:    SeverityInfo,
			}}
		}
	}
	return nil
}
