package query

import (
	"context"
	"errors"
	"sync"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/store"
)

type fakeAIClient struct {
	mu        sync.Mutex
	answer    string
	answerErr error
	embedding []float32
	embedErr  error
	prompts   []string
}

func (f *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.answerErr
}

func (f *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("not implemented")
}

func (f *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return f.embedding, f.embedErr
}

func (f *fakeAIClient) ResetMetrics() {}

func (f *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type neighborCall struct {
	frontier []int64
	exclude  []int64
	limit    int
}

// fakeStore serves canned rows. Neighbours are looked up per frontier node.
type fakeStore struct {
	mu sync.Mutex

	entry     []common.Node
	neighbors map[int64][]common.Node
	chunks    []common.Chunk
	recent    []common.Chunk
	scopes    map[int64]common.Scope
	facts     []store.ScoredFact
	searchErr error

	neighborCalls []neighborCall
	chunkNodeIDs  []int64
	factScopeID   *int64
}

func (f *fakeStore) UpsertNode(ctx context.Context, teamID int64, entity common.ExtractedEntity, source common.SourceInfo) (common.Node, error) {
	return common.Node{}, errors.New("not implemented")
}

func (f *fakeStore) CreateEdge(ctx context.Context, teamID int64, rel common.ExtractedRelationship, source common.SourceInfo) (*common.Edge, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) SaveChunk(ctx context.Context, teamID int64, content string, source common.SourceInfo, title *string, linkedNodeIDs []int64) (common.Chunk, error) {
	return common.Chunk{}, errors.New("not implemented")
}

func (f *fakeStore) GetNode(ctx context.Context, teamID, nodeID int64) (common.Node, error) {
	return common.Node{}, store.ErrNotFound
}

func (f *fakeStore) SearchNodesByEmbedding(ctx context.Context, teamID int64, embedding []float32, limit int) ([]common.Node, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.entry) > limit {
		return f.entry[:limit], nil
	}
	return f.entry, nil
}

func (f *fakeStore) NeighborNodes(ctx context.Context, teamID int64, nodeIDs, excludeIDs []int64, limit int) ([]common.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.neighborCalls = append(f.neighborCalls, neighborCall{
		frontier: append([]int64{}, nodeIDs...),
		exclude:  append([]int64{}, excludeIDs...),
		limit:    limit,
	})
	excluded := make(map[int64]bool)
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	out := []common.Node{}
	for _, id := range nodeIDs {
		for _, n := range f.neighbors[id] {
			if excluded[n.ID] || len(out) >= limit {
				continue
			}
			excluded[n.ID] = true
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) ChunksForNodes(ctx context.Context, teamID int64, nodeIDs []int64, limit int) ([]common.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunkNodeIDs = append([]int64{}, nodeIDs...)
	return f.chunks, nil
}

func (f *fakeStore) RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error) {
	return f.recent, nil
}

func (f *fakeStore) GetScope(ctx context.Context, scopeID int64) (common.Scope, error) {
	s, ok := f.scopes[scopeID]
	if !ok {
		return common.Scope{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error) {
	return common.Fact{}, errors.New("not implemented")
}

func (f *fakeStore) InvalidateFact(ctx context.Context, oldID int64, newID *int64) error {
	return errors.New("not implemented")
}

func (f *fakeStore) GetFact(ctx context.Context, factID int64) (common.Fact, error) {
	return common.Fact{}, store.ErrNotFound
}

func (f *fakeStore) ListFacts(ctx context.Context, teamID int64, scopeID *int64, includeInvalid bool) ([]common.Fact, error) {
	return nil, nil
}

func (f *fakeStore) SearchSimilarFacts(ctx context.Context, teamID int64, scopeID *int64, embedding []float32, limit int) ([]store.ScoredFact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factScopeID = scopeID
	return f.facts, nil
}

func node(id int64, name string) common.Node {
	return common.Node{ID: id, TeamID: 1, Name: name, Type: common.NodeTypeConcept}
}
