package doc

import (
	"context"

	"github.com/ravenloom/backend/pkg/loader"
)

const docXMLMax = 50 << 20

// DocSourceLoader loads Word documents (.docx) through another loader and
// extracts their text content.
type DocSourceLoader struct {
	loader loader.SourceLoader
	memo   loader.Memo
}

// NewDocSourceLoader creates a document loader that extracts text directly
// from the docx XML fetched by l.
func NewDocSourceLoader(l loader.SourceLoader) *DocSourceLoader {
	return &DocSourceLoader{loader: l}
}

// GetSourceBytes returns the plain text of the document.
func (l *DocSourceLoader) GetSourceBytes(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.memo.Do("docx:"+loader.CacheKey(src), func() ([]byte, error) {
		content, err := l.loader.GetSourceBytes(ctx, src)
		if err != nil {
			return nil, err
		}
		return parseDocx(content)
	})
}
