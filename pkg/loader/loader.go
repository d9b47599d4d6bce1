package loader

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"
)

// SourceKind tells the ingest worker how to turn a source into text.
type SourceKind string

const (
	SourceKindText SourceKind = "text"
	SourceKindDocx SourceKind = "docx"
	SourceKindURL  SourceKind = "url"
)

// ErrUnsupported is returned for file types that cannot be ingested.
var ErrUnsupported = errors.New("unsupported source type")

// Source is a document that can be loaded as text. Path is an object key
// for stored files and the address for web sources.
//
// The actual content is retrieved via the associated SourceLoader.
type Source struct {
	ID     string
	Path   string
	Kind   SourceKind
	Loader SourceLoader
}

// SourceLoader loads the bytes of a Source. Implementations may read from
// object storage, the web, or wrap another loader to decode a format.
type SourceLoader interface {
	GetSourceBytes(ctx context.Context, src Source) ([]byte, error)
}

// GetText loads the source and returns it as a string. Content that is not
// valid UTF-8 is rejected.
//
// Example:
//
//	text, err := src.GetText(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
func (s Source) GetText(ctx context.Context) (string, error) {
	if s.Loader == nil {
		return "", errors.New("source has no loader")
	}
	b, err := s.Loader.GetSourceBytes(ctx, s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrUnsupported
	}
	return string(b), nil
}

// KindFromName derives the source kind from a file name.
func KindFromName(name string) (SourceKind, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "txt", "md", "markdown", "text", "":
		return SourceKindText, nil
	case "docx":
		return SourceKindDocx, nil
	default:
		return "", ErrUnsupported
	}
}

// CacheKey identifies a source in loader caches.
func CacheKey(src Source) string {
	return src.ID + ":" + src.Path
}

// Memo caches loaded bytes per key and collapses concurrent loads of the
// same key into one call. The zero value is ready to use.
type Memo struct {
	cache   map[string][]byte
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// Do returns the cached bytes for key or runs fn once to fill the cache.
// Failed loads are not cached.
func (m *Memo) Do(key string, fn func() ([]byte, error)) ([]byte, error) {
	if b, ok := m.get(key); ok {
		return b, nil
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		if b, ok := m.get(key); ok {
			return b, nil
		}
		b, err := fn()
		if err != nil {
			return nil, err
		}

		m.cacheMu.Lock()
		if m.cache == nil {
			m.cache = make(map[string][]byte)
		}
		m.cache[key] = b
		m.cacheMu.Unlock()

		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (m *Memo) get(key string) ([]byte, bool) {
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	b, ok := m.cache[key]
	return b, ok
}
