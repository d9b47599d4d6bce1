package facts

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const DefaultPreviewTTL = time.Hour

// Preview is a pending remember request waiting for confirmation.
type Preview struct {
	PreviewID          string          `json:"preview_id"`
	ScopeID            int64           `json:"scope_id"`
	TeamID             int64           `json:"team_id"`
	UserID             int64           `json:"user_id"`
	SourceText         string          `json:"source_text"`
	ExtractedFacts     []ExtractedFact `json:"extracted_facts"`
	Conflicts          []FactConflict  `json:"conflicts"`
	IsMismatch         bool            `json:"is_mismatch"`
	MismatchSuggestion *string         `json:"mismatch_suggestion,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`

	// Embeddings[i] belongs to ExtractedFacts[i] and may be nil.
	Embeddings [][]float32 `json:"-"`
}

// FactConflict pairs an extracted fact with an existing similar fact.
type FactConflict struct {
	FactIndex    int          `json:"fact_index"`
	ExistingFact ExistingFact `json:"existing_fact"`
	Type         ConflictType `json:"type"`
	Similarity   float64      `json:"similarity"`
}

type ExistingFact struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// PreviewStore keeps previews for a limited time. Take consumes a preview,
// so every preview can be confirmed at most once. Unknown and expired ids
// yield ErrPreviewNotFound.
type PreviewStore interface {
	Put(ctx context.Context, p Preview) error
	Get(ctx context.Context, previewID string) (Preview, error)
	Take(ctx context.Context, previewID string) (Preview, error)
	Delete(ctx context.Context, previewID string) error
	PurgeExpired(ctx context.Context)
}

// TTLPreviewStore is an in-process PreviewStore. Its cleaner goroutine is
// never started; expired entries are invisible to Take and Delete and are
// dropped by PurgeExpired.
type TTLPreviewStore struct {
	cache *ttlcache.Cache[string, Preview]
}

var _ PreviewStore = (*TTLPreviewStore)(nil)

func NewTTLPreviewStore(ttl time.Duration) *TTLPreviewStore {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &TTLPreviewStore{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Preview](ttl),
			ttlcache.WithDisableTouchOnHit[string, Preview](),
		),
	}
}

func (s *TTLPreviewStore) Put(ctx context.Context, p Preview) error {
	s.cache.Set(p.PreviewID, p, ttlcache.DefaultTTL)
	return nil
}

func (s *TTLPreviewStore) Get(ctx context.Context, previewID string) (Preview, error) {
	item := s.cache.Get(previewID)
	if item == nil {
		return Preview{}, ErrPreviewNotFound
	}
	return item.Value(), nil
}

func (s *TTLPreviewStore) Take(ctx context.Context, previewID string) (Preview, error) {
	item, ok := s.cache.GetAndDelete(previewID)
	if !ok || item == nil {
		return Preview{}, ErrPreviewNotFound
	}
	return item.Value(), nil
}

func (s *TTLPreviewStore) Delete(ctx context.Context, previewID string) error {
	_, err := s.Take(ctx, previewID)
	return err
}

func (s *TTLPreviewStore) PurgeExpired(ctx context.Context) {
	s.cache.DeleteExpired()
}

// Len counts the previews that have not expired.
func (s *TTLPreviewStore) Len() int {
	return s.cache.Len()
}
