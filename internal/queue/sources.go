package queue

import (
	"fmt"
	"strconv"

	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/loader"
	"github.com/ravenloom/backend/pkg/loader/doc"
)

// SourceResolver maps a document row to a loadable source.
type SourceResolver interface {
	Resolve(d common.Document) (loader.Source, error)
}

// DocumentSources resolves stored documents through an object loader and
// url documents through a web loader.
type DocumentSources struct {
	objects loader.SourceLoader
	docx    loader.SourceLoader
	web     loader.SourceLoader
}

func NewDocumentSources(objects, web loader.SourceLoader) *DocumentSources {
	return &DocumentSources{
		objects: objects,
		docx:    doc.NewDocSourceLoader(objects),
		web:     web,
	}
}

func (s *DocumentSources) Resolve(d common.Document) (loader.Source, error) {
	src := loader.Source{
		ID:   strconv.FormatInt(d.ID, 10),
		Path: d.Location,
	}

	switch d.SourceType {
	case common.DocumentSourceURL:
		src.Kind = loader.SourceKindURL
		src.Loader = s.web
	case common.DocumentSourceUpload, common.DocumentSourceText:
		kind, err := loader.KindFromName(d.Location)
		if err != nil {
			return loader.Source{}, err
		}
		src.Kind = kind
		src.Loader = s.objects
		if kind == loader.SourceKindDocx {
			src.Loader = s.docx
		}
	default:
		return loader.Source{}, fmt.Errorf("%w: document source %q", loader.ErrUnsupported, d.SourceType)
	}

	if src.Loader == nil {
		return loader.Source{}, fmt.Errorf("no loader configured for %s documents", d.SourceType)
	}
	return src, nil
}
