package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/loader"
	"github.com/ravenloom/backend/pkg/store"

	amqp "github.com/rabbitmq/amqp091-go"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{key: key, msg: msg})
	return nil
}

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return errors.New("unexpected reject")
}

type fakeAIClient struct {
	completion string
	formatErr  error
}

func (c *fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return c.completion, nil
}

func (c *fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	if c.formatErr != nil {
		return c.formatErr
	}
	return errors.New("no structured output")
}

func (c *fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

func (c *fakeAIClient) ResetMetrics() {}

func (c *fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

type fakeGraphStore struct {
	mu     sync.Mutex
	nextID int64
	nodes  []string
	chunks []common.SourceInfo
}

func (s *fakeGraphStore) UpsertNode(ctx context.Context, teamID int64, entity common.ExtractedEntity, source common.SourceInfo) (common.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.nodes = append(s.nodes, entity.Name)
	return common.Node{ID: s.nextID, TeamID: teamID, Name: entity.Name, Type: entity.Type}, nil
}

func (s *fakeGraphStore) CreateEdge(ctx context.Context, teamID int64, rel common.ExtractedRelationship, source common.SourceInfo) (*common.Edge, error) {
	return nil, nil
}

func (s *fakeGraphStore) SaveChunk(ctx context.Context, teamID int64, content string, source common.SourceInfo, title *string, linkedNodeIDs []int64) (common.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, source)
	return common.Chunk{TeamID: teamID, Content: content, LinkedNodeIDs: linkedNodeIDs}, nil
}

func (s *fakeGraphStore) GetNode(ctx context.Context, teamID, nodeID int64) (common.Node, error) {
	return common.Node{}, store.ErrNotFound
}

func (s *fakeGraphStore) SearchNodesByEmbedding(ctx context.Context, teamID int64, embedding []float32, limit int) ([]common.Node, error) {
	return nil, nil
}

func (s *fakeGraphStore) NeighborNodes(ctx context.Context, teamID int64, nodeIDs, excludeIDs []int64, limit int) ([]common.Node, error) {
	return nil, nil
}

func (s *fakeGraphStore) ChunksForNodes(ctx context.Context, teamID int64, nodeIDs []int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}

func (s *fakeGraphStore) RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}

type fakeFactStore struct {
	scopes  map[int64]common.Scope
	created []common.Fact
}

func (s *fakeFactStore) GetScope(ctx context.Context, scopeID int64) (common.Scope, error) {
	scope, ok := s.scopes[scopeID]
	if !ok {
		return common.Scope{}, store.ErrNotFound
	}
	return scope, nil
}

func (s *fakeFactStore) CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error) {
	fact.ID = int64(len(s.created) + 1)
	s.created = append(s.created, fact)
	return fact, nil
}

func (s *fakeFactStore) InvalidateFact(ctx context.Context, oldID int64, newID *int64) error {
	return nil
}

func (s *fakeFactStore) GetFact(ctx context.Context, factID int64) (common.Fact, error) {
	return common.Fact{}, store.ErrNotFound
}

func (s *fakeFactStore) ListFacts(ctx context.Context, teamID int64, scopeID *int64, includeInvalid bool) ([]common.Fact, error) {
	return s.created, nil
}

func (s *fakeFactStore) SearchSimilarFacts(ctx context.Context, teamID int64, scopeID *int64, embedding []float32, limit int) ([]store.ScoredFact, error) {
	return nil, nil
}

type staticLoader struct {
	text  string
	err   error
	calls int
}

func (l *staticLoader) GetSourceBytes(ctx context.Context, src loader.Source) ([]byte, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return []byte(l.text), nil
}

type fakeResolver struct {
	loader *staticLoader
	err    error
}

func (r fakeResolver) Resolve(d common.Document) (loader.Source, error) {
	if r.err != nil {
		return loader.Source{}, r.err
	}
	return loader.Source{ID: "1", Path: d.Location, Kind: loader.SourceKindText, Loader: r.loader}, nil
}
