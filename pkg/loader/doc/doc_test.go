package doc

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/ravenloom/backend/pkg/loader"
)

type bytesLoader struct {
	data []byte
}

func (l bytesLoader) GetSourceBytes(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.data, nil
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to create entry: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body +
		`</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("failed to write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestParseDocx(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "Paragraphs",
			body: `<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p><w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> one.</w:t></w:r></w:p>`,
			want: "First paragraph.\n\nSecond one.\n",
		},
		{
			name: "Heading",
			body: `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Setup</w:t></w:r></w:p><w:p><w:r><w:t>Install it.</w:t></w:r></w:p>`,
			want: "# Setup\n\nInstall it.\n",
		},
		{
			name: "DeletedRevisionSkipped",
			body: `<w:p><w:r><w:t>Keep</w:t></w:r><w:del><w:r><w:t>Drop</w:t></w:r></w:del></w:p>`,
			want: "Keep\n",
		},
		{
			name: "Table",
			body: `<w:tbl><w:tr><w:tc><w:p><w:r><w:t>a</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>b</w:t></w:r></w:p></w:tc></w:tr></w:tbl><w:p><w:r><w:t>After</w:t></w:r></w:p>`,
			want: "a\tb\n\nAfter\n",
		},
		{
			name: "Empty",
			body: ``,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDocx(buildDocx(t, tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, string(got))
			}
		})
	}
}

func TestParseDocxInvalid(t *testing.T) {
	if _, err := parseDocx([]byte("not a zip")); err == nil {
		t.Fatalf("expected error for invalid docx")
	}
}

func TestDocSourceLoader(t *testing.T) {
	l := NewDocSourceLoader(bytesLoader{data: buildDocx(t, `<w:p><w:r><w:t>Hello</w:t></w:r></w:p>`)})
	src := loader.Source{ID: "7", Path: "teams/1/documents/x.docx", Kind: loader.SourceKindDocx, Loader: l}

	got, err := src.GetText(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello\n" {
		t.Fatalf("expected %q, got %q", "Hello\n", got)
	}
}
