package store

import (
	"context"
	"errors"

	"github.com/ravenloom/backend/pkg/common"
)

// ErrNotFound is returned by lookups of a single row that does not exist.
var ErrNotFound = errors.New("not found")

// GraphStorage persists the team knowledge graph: nodes, edges and the
// chunks they were discovered in. Every write is a single statement and
// relies on unique constraints instead of application side locking.
type GraphStorage interface {
	// UpsertNode never surfaces a uniqueness error. A lost insert race
	// resolves to the row that won.
	UpsertNode(ctx context.Context, teamID int64, entity common.ExtractedEntity, source common.SourceInfo) (common.Node, error)
	// CreateEdge returns nil when an endpoint cannot be resolved.
	CreateEdge(ctx context.Context, teamID int64, rel common.ExtractedRelationship, source common.SourceInfo) (*common.Edge, error)
	SaveChunk(
		ctx context.Context,
		teamID int64,
		content string,
		source common.SourceInfo,
		title *string,
		linkedNodeIDs []int64,
	) (common.Chunk, error)

	GetNode(ctx context.Context, teamID, nodeID int64) (common.Node, error)
	SearchNodesByEmbedding(ctx context.Context, teamID int64, embedding []float32, limit int) ([]common.Node, error)
	// NeighborNodes returns distinct nodes connected to any of nodeIDs in
	// either direction, strongest edge first.
	NeighborNodes(ctx context.Context, teamID int64, nodeIDs, excludeIDs []int64, limit int) ([]common.Node, error)
	ChunksForNodes(ctx context.Context, teamID int64, nodeIDs []int64, limit int) ([]common.Chunk, error)
	RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error)
}

// ScoredFact is a fact together with its cosine similarity to a query.
type ScoredFact struct {
	Fact       common.Fact `json:"fact"`
	Similarity float64     `json:"similarity"`
}

// FactStorage persists facts with append and soft invalidate semantics.
// Fact rows are never updated in place except for invalidation.
type FactStorage interface {
	GetScope(ctx context.Context, scopeID int64) (common.Scope, error)

	CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error)
	// InvalidateFact closes the validity of oldID. newID may be nil for a
	// manual forget. The newer fact is never touched.
	InvalidateFact(ctx context.Context, oldID int64, newID *int64) error
	GetFact(ctx context.Context, factID int64) (common.Fact, error)
	ListFacts(ctx context.Context, teamID int64, scopeID *int64, includeInvalid bool) ([]common.Fact, error)
	// SearchSimilarFacts only considers valid facts of the team that are
	// either unscoped or belong to scopeID.
	SearchSimilarFacts(ctx context.Context, teamID int64, scopeID *int64, embedding []float32, limit int) ([]ScoredFact, error)
}
