package facts

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/store"
)

type fakeAIClient struct {
	mu         sync.Mutex
	formatJSON string
	embedErr   error
	prompts    []string
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.formatJSON == "" {
		return errors.New("model unavailable")
	}
	return json.Unmarshal([]byte(f.formatJSON), out)
}

func (f *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{float32(len(input)), 1}, nil
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type invalidation struct {
	oldID int64
	newID *int64
}

// fakeFactStore treats every valid fact of the scope as similar.
type fakeFactStore struct {
	mu            sync.Mutex
	scopes        map[int64]common.Scope
	facts         []common.Fact
	invalidations []invalidation
}

func newFakeFactStore(existing ...string) *fakeFactStore {
	st := &fakeFactStore{
		scopes: map[int64]common.Scope{7: {ID: 7, TeamID: 1, Name: "general"}},
	}
	for _, content := range existing {
		st.facts = append(st.facts, common.Fact{
			ID:         int64(len(st.facts) + 1),
			TeamID:     1,
			Content:    content,
			Category:   DefaultCategory,
			SourceType: SourceTypeUser,
			ValidFrom:  time.Now(),
		})
	}
	return st
}

func (f *fakeFactStore) GetScope(ctx context.Context, scopeID int64) (common.Scope, error) {
	s, ok := f.scopes[scopeID]
	if !ok {
		return common.Scope{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeFactStore) CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fact.ID = int64(len(f.facts) + 1)
	fact.ValidFrom = time.Now()
	f.facts = append(f.facts, fact)
	return fact, nil
}

func (f *fakeFactStore) InvalidateFact(ctx context.Context, oldID int64, newID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.facts {
		if f.facts[i].ID != oldID || !f.facts[i].IsValid() {
			continue
		}
		now := time.Now()
		f.facts[i].ValidUntil = &now
		f.facts[i].SupersededBy = newID
		f.invalidations = append(f.invalidations, invalidation{oldID: oldID, newID: newID})
		return nil
	}
	return store.ErrNotFound
}

func (f *fakeFactStore) GetFact(ctx context.Context, factID int64) (common.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fact := range f.facts {
		if fact.ID == factID {
			return fact, nil
		}
	}
	return common.Fact{}, store.ErrNotFound
}

func (f *fakeFactStore) ListFacts(ctx context.Context, teamID int64, scopeID *int64, includeInvalid bool) ([]common.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []common.Fact
	for _, fact := range f.facts {
		if fact.TeamID == teamID && (includeInvalid || fact.IsValid()) {
			out = append(out, fact)
		}
	}
	return out, nil
}

func (f *fakeFactStore) SearchSimilarFacts(ctx context.Context, teamID int64, scopeID *int64, embedding []float32, limit int) ([]store.ScoredFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.ScoredFact
	for _, fact := range f.facts {
		if fact.TeamID != teamID || !fact.IsValid() {
			continue
		}
		if fact.ScopeID != nil && scopeID != nil && *fact.ScopeID != *scopeID {
			continue
		}
		out = append(out, store.ScoredFact{Fact: fact, Similarity: 0.9})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
