package queue

import (
	"errors"
	"testing"

	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/loader"
)

func TestDocumentSourcesResolve(t *testing.T) {
	objects := &staticLoader{}
	web := &staticLoader{}
	sources := NewDocumentSources(objects, web)

	tests := []struct {
		name       string
		doc        common.Document
		wantKind   loader.SourceKind
		wantLoader loader.SourceLoader
		wantErr    error
	}{
		{"Upload", common.Document{ID: 1, SourceType: common.DocumentSourceUpload, Location: "teams/1/documents/a.md"}, loader.SourceKindText, objects, nil},
		{"Text", common.Document{ID: 2, SourceType: common.DocumentSourceText, Location: "teams/1/documents/b.txt"}, loader.SourceKindText, objects, nil},
		{"URL", common.Document{ID: 3, SourceType: common.DocumentSourceURL, Location: "https://example.com"}, loader.SourceKindURL, web, nil},
		{"UnsupportedFile", common.Document{ID: 4, SourceType: common.DocumentSourceUpload, Location: "teams/1/documents/c.pdf"}, "", nil, loader.ErrUnsupported},
		{"UnknownSourceType", common.Document{ID: 5, SourceType: "calendar", Location: "x"}, "", nil, loader.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := sources.Resolve(tt.doc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Kind != tt.wantKind {
				t.Fatalf("expected kind %s, got %s", tt.wantKind, src.Kind)
			}
			if src.Loader != tt.wantLoader {
				t.Fatalf("expected loader %v, got %v", tt.wantLoader, src.Loader)
			}
			if src.Path != tt.doc.Location {
				t.Fatalf("expected path %s, got %s", tt.doc.Location, src.Path)
			}
		})
	}
}

func TestDocumentSourcesResolveDocx(t *testing.T) {
	sources := NewDocumentSources(&staticLoader{}, nil)
	src, err := sources.Resolve(common.Document{ID: 1, SourceType: common.DocumentSourceUpload, Location: "a.docx"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Kind != loader.SourceKindDocx {
		t.Fatalf("expected docx kind, got %s", src.Kind)
	}
	if _, ok := src.Loader.(*staticLoader); ok {
		t.Fatalf("expected docx sources to go through the docx loader")
	}
}

func TestDocumentSourcesResolveWithoutWebLoader(t *testing.T) {
	sources := NewDocumentSources(&staticLoader{}, nil)
	if _, err := sources.Resolve(common.Document{ID: 1, SourceType: common.DocumentSourceURL, Location: "https://example.com"}); err == nil {
		t.Fatalf("expected error without web loader")
	}
}
