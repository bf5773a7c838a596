package extraction

import (
	"context"
	"testing"
)

func TestPlaceholderExtractsKeyValueLines(t *testing.T) {
	result, err := PlaceholderExtractor{}.Extract(context.Background(), Input{
		FileName: "report.txt",
		Text:     "Patient Name: Jane Doe\nDocument Type: lab_report\nnot a field line\nDate Of Report: 2026-03-01",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	name := result.Fields["patient_name"]
	if name.Value != "Jane Doe" || name.Confidence != placeholderConfidence {
		t.Fatalf("patient_name: %+v", name)
	}
	if _, ok := result.Fields["date_of_report"]; !ok {
		t.Fatalf("fields: %+v", result.Fields)
	}
	if result.DocumentType != "lab_report" || result.TypeConfidence != placeholderConfidence {
		t.Fatalf("type: %s (%v)", result.DocumentType, result.TypeConfidence)
	}
}

func TestPlaceholderGuessesTypeFromFileName(t *testing.T) {
	cases := []struct {
		fileName string
		want     string
	}{
		{"discharge-2026.txt", "discharge_summary"},
		{"lab_panel.txt", "lab_report"},
		{"referral-note.txt", "referral"},
		{"consult.txt", "consult_note"},
	}
	for _, tc := range cases {
		result, err := PlaceholderExtractor{}.Extract(context.Background(), Input{
			FileName: tc.fileName,
			Text:     "Patient Name: Jane Doe",
		})
		if err != nil {
			t.Fatalf("extract %s: %v", tc.fileName, err)
		}
		if result.DocumentType != tc.want || result.TypeConfidence != 0.5 {
			t.Errorf("%s: type %s (%v), want %s", tc.fileName, result.DocumentType, result.TypeConfidence, tc.want)
		}
	}
}

func TestPlaceholderUnknownType(t *testing.T) {
	result, err := PlaceholderExtractor{}.Extract(context.Background(), Input{
		FileName: "scan-0042.txt",
		Text:     "free text without any structure",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if result.DocumentType != "unknown" || result.TypeConfidence != 0.3 {
		t.Fatalf("type: %s (%v)", result.DocumentType, result.TypeConfidence)
	}
	if len(result.Fields) != 0 {
		t.Fatalf("fields: %+v", result.Fields)
	}
}

func TestPlaceholderSkipsProseAndLongKeys(t *testing.T) {
	result, err := PlaceholderExtractor{}.Extract(context.Background(), Input{
		FileName: "note.txt",
		Text: "Patient Name: Jane Doe\n" +
			"Is the patient stable? Yes: maybe\n" +
			"This sentence mentions a ratio of roughly one to three and keeps going well past the key limit: value",
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Fields) != 1 {
		t.Fatalf("prose leaked into fields: %+v", result.Fields)
	}
}
