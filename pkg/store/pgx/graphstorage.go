package pgx

import (
	"context"
	"errors"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/singleflight"
)

const defaultFactSimilarityMin = 0.7

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStorage implements store.GraphStorage and store.FactStorage on
// PostgreSQL with pgvector. Embeddings for new nodes and chunks are
// computed with the AI client; concurrent embeddings of the same node are
// collapsed into one request.
type GraphDBStorage struct {
	conn              pgxIConn
	aiClient          ai.GraphAIClient
	embedGroup        singleflight.Group
	factSimilarityMin float64
}

var (
	_ store.GraphStorage = (*GraphDBStorage)(nil)
	_ store.FactStorage  = (*GraphDBStorage)(nil)
)

type GraphDBStorageOption func(*GraphDBStorage)

// WithFactSimilarityMin sets the cosine similarity a fact needs to be
// returned by SearchSimilarFacts.
func WithFactSimilarityMin(v float64) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if v > 0 {
			s.factSimilarityMin = v
		}
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an existing
// database connection or pool. The AI client may be nil, in which case rows
// are stored without embeddings.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	aiClient ai.GraphAIClient,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:              conn,
		aiClient:          aiClient,
		factSimilarityMin: defaultFactSimilarityMin,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// embed returns nil when no embedding could be produced.
func (s *GraphDBStorage) embed(ctx context.Context, key, text string) []float32 {
	if s.aiClient == nil || text == "" {
		return nil
	}
	// The shared call outlives any single caller, so one cancelled caller
	// does not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := s.embedGroup.DoChan(key, func() (any, error) {
		return s.aiClient.GenerateEmbedding(shared, []byte(text))
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		logger.Warn("[Store] Embedding abandoned, storing row without embedding", "err", ctx.Err())
		return nil
	}
	if res.Err != nil {
		logger.Warn("[Store] Embedding failed, storing row without embedding", "err", res.Err)
		return nil
	}
	emb, _ := res.Val.([]float32)
	if len(emb) == 0 {
		return nil
	}
	return emb
}

func toVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
