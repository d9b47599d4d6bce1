package routes

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/query"
	"github.com/ravenloom/backend/pkg/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

var errBoom = errors.New("boom")

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i any) error {
	return tv.v.Struct(i)
}

// fakeAIClient answers every question with a fixed text. Embeddings and
// structured output are unavailable, so services take their fallbacks.
type fakeAIClient struct{}

func (fakeAIClient) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "Nothing is known about that yet.", nil
}

func (fakeAIClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...ai.GenerateOption) error {
	return errors.New("model unavailable")
}

func (fakeAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return nil, errors.New("embeddings unavailable")
}

func (fakeAIClient) ResetMetrics() {}

func (fakeAIClient) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// fakeStore implements store.GraphStorage and store.FactStorage in memory.
type fakeStore struct {
	mu        sync.Mutex
	nodes     map[int64]common.Node
	neighbors []common.Node
	scopes    map[int64]common.Scope
	facts     []common.Fact
	forgotten []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:  map[int64]common.Node{},
		scopes: map[int64]common.Scope{5: {ID: 5, TeamID: 3, Name: "general"}},
	}
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
	n, ok := f.nodes[nodeID]
	if !ok || n.TeamID != teamID {
		return common.Node{}, store.ErrNotFound
	}
	return n, nil
}

func (f *fakeStore) SearchNodesByEmbedding(ctx context.Context, teamID int64, embedding []float32, limit int) ([]common.Node, error) {
	return nil, nil
}

func (f *fakeStore) NeighborNodes(ctx context.Context, teamID int64, nodeIDs, excludeIDs []int64, limit int) ([]common.Node, error) {
	return f.neighbors, nil
}

func (f *fakeStore) ChunksForNodes(ctx context.Context, teamID int64, nodeIDs []int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error) {
	return nil, nil
}

func (f *fakeStore) GetScope(ctx context.Context, scopeID int64) (common.Scope, error) {
	s, ok := f.scopes[scopeID]
	if !ok {
		return common.Scope{}, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fact.ID = int64(len(f.facts) + 1)
	f.facts = append(f.facts, fact)
	return fact, nil
}

func (f *fakeStore) InvalidateFact(ctx context.Context, oldID int64, newID *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.forgotten {
		if id == oldID {
			return store.ErrNotFound
		}
	}
	for _, fact := range f.facts {
		if fact.ID == oldID {
			f.forgotten = append(f.forgotten, oldID)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) GetFact(ctx context.Context, factID int64) (common.Fact, error) {
	for _, fact := range f.facts {
		if fact.ID == factID {
			return fact, nil
		}
	}
	return common.Fact{}, store.ErrNotFound
}

func (f *fakeStore) ListFacts(ctx context.Context, teamID int64, scopeID *int64, includeInvalid bool) ([]common.Fact, error) {
	var out []common.Fact
	for _, fact := range f.facts {
		if fact.TeamID == teamID {
			out = append(out, fact)
		}
	}
	return out, nil
}

func (f *fakeStore) SearchSimilarFacts(ctx context.Context, teamID int64, scopeID *int64, embedding []float32, limit int) ([]store.ScoredFact, error) {
	return nil, nil
}

type published struct {
	queue string
	body  string
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{queue: key, body: string(msg.Body)})
	return nil
}

type fakeObjectClient struct {
	mu      sync.Mutex
	puts    []string
	deletes []string
}

func (f *fakeObjectClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, aws.ToString(params.Key))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newTestServices(t *testing.T, st *fakeStore) middleware.Services {
	t.Helper()
	client := fakeAIClient{}
	rag := query.NewGraphRAG(st, client)
	ask, err := query.NewAskService(query.NewAskServiceParams{Facts: st, GraphRAG: rag, AIClient: client})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remember, err := facts.NewRememberService(facts.NewRememberServiceParams{Facts: st, AIClient: client})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return middleware.Services{Graph: st, Facts: st, GraphRAG: rag, Ask: ask, Remember: remember}
}

type request struct {
	method      string
	body        string
	contentType string
	params      map[string]string
	query       string
	teamID      int64
}

// newContext builds an AppContext as it looks after the auth and team
// middleware ran.
func newContext(app *middleware.App, user *middleware.AppUser, r request) (*middleware.AppContext, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}

	target := "/"
	if r.query != "" {
		target += "?" + r.query
	}
	req := httptest.NewRequest(r.method, target, strings.NewReader(r.body))
	contentType := r.contentType
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()

	c := e.NewContext(req, rec)
	names := make([]string, 0, len(r.params))
	values := make([]string, 0, len(r.params))
	for k, v := range r.params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if r.teamID != 0 {
		middleware.SetTeamID(c, r.teamID)
	}
	return &middleware.AppContext{Context: c, App: app, User: user}, rec
}
