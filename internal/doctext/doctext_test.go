package doctext

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	localstore "meddocs-backend/internal/shared/storage/object/local"
)

func TestFromBytesPlainText(t *testing.T) {
	const body = "Patient Name: Jane Doe\nDiagnosis: hypertension"
	got, err := FromBytes(context.Background(), []byte(body), "text/plain; charset=utf-8", "report.txt")
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if got != body {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestFromBytesUnsupportedFormat(t *testing.T) {
	_, err := FromBytes(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg", "scan.jpg")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestFromBytesDOCX(t *testing.T) {
	payload := buildDocx(t, `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Patient Name: Jane Doe</w:t></w:r></w:p>
    <w:p><w:r><w:t>Diagnosis: hypertension</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got, err := FromBytes(context.Background(), payload, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "report.docx")
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if !strings.Contains(got, "Jane Doe") || !strings.Contains(got, "hypertension") {
		t.Fatalf("docx text: %q", got)
	}
}

func TestFromBytesDetectsDocxBehindZipMime(t *testing.T) {
	payload := buildDocx(t, `<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>hello</w:t></w:r></w:p></w:body></w:document>`)
	got, err := FromBytes(context.Background(), payload, "application/zip", "report.docx")
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if !strings.Contains(got, "hello") {
		t.Fatalf("docx text: %q", got)
	}
}

func TestFromBytesExtensionFallback(t *testing.T) {
	got, err := FromBytes(context.Background(), []byte("plain body"), "", "notes.txt")
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}
	if got != "plain body" {
		t.Fatalf("got %q", got)
	}
}

func TestFromStore(t *testing.T) {
	ctx := context.Background()
	store := localstore.New(t.TempDir())
	const body = "Patient Name: Jane Doe"

	key, _, mime, err := store.Save(ctx, "patient-1", "report.txt", strings.NewReader(body))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := FromStore(ctx, store, key, mime, "report.txt")
	if err != nil {
		t.Fatalf("from store: %v", err)
	}
	if got != body {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestFromStoreMissingKey(t *testing.T) {
	store := localstore.New(t.TempDir())
	if _, err := FromStore(context.Background(), store, "missing/key", "text/plain", "report.txt"); err == nil {
		t.Fatal("want error for missing object")
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
