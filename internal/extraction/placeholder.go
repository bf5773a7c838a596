package extraction

import (
	"context"
	"path/filepath"
	"strings"
)

// placeholderConfidence is assigned to every field the heuristic finds.
const placeholderConfidence = 0.8

// PlaceholderExtractor is a deterministic heuristic used until an external
// extraction service is configured. It scans the text for "Key: Value"
// lines and turns them into snake_cased fields.
type PlaceholderExtractor struct{}

func (PlaceholderExtractor) Extract(ctx context.Context, input Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	fields := make(map[string]FieldResult)
	for _, line := range strings.Split(input.Text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name := fieldName(key)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		if _, seen := fields[name]; seen {
			continue
		}
		fields[name] = FieldResult{Value: value, Confidence: placeholderConfidence}
	}

	docType := "unknown"
	typeConfidence := 0.3
	if typed, ok := fields["document_type"]; ok {
		docType = strings.ToLower(typed.Value)
		typeConfidence = typed.Confidence
	} else if guess := typeFromName(input.FileName); guess != "" {
		docType = guess
		typeConfidence = 0.5
	}

	return Result{
		DocumentType:   docType,
		TypeConfidence: typeConfidence,
		Fields:         fields,
	}, nil
}

func fieldName(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || strings.ContainsAny(raw, ".!?") || len(raw) > 40 {
		return ""
	}
	return strings.ReplaceAll(strings.Join(strings.Fields(raw), " "), " ", "_")
}

func typeFromName(fileName string) string {
	base := strings.ToLower(strings.TrimSuffix(fileName, filepath.Ext(fileName)))
	switch {
	case strings.Contains(base, "lab"):
		return "lab_report"
	case strings.Contains(base, "discharge"):
		return "discharge_summary"
	case strings.Contains(base, "referral"):
		return "referral"
	case strings.Contains(base, "consult"):
		return "consult_note"
	default:
		return ""
	}
}

var _ Extractor = PlaceholderExtractor{}
