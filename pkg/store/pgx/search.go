package pgx

import (
	"context"
	"fmt"

	"github.com/ravenloom/backend/pkg/common"

	"github.com/pgvector/pgvector-go"
)

const searchNodesSQL = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE team_id = $1 AND embedding IS NOT NULL
ORDER BY embedding <=> $2
LIMIT $3`

// Neighbours in both directions, ranked by their strongest connecting edge.
const neighborNodesSQL = `
SELECT n.id, n.team_id, n.name, n.type, n.description, n.mention_count, n.source_type, n.source_id, n.created_at, n.updated_at
FROM (
    SELECT CASE WHEN e.source_node_id = ANY($2::bigint[]) THEN e.target_node_id ELSE e.source_node_id END AS node_id,
           MAX(e.weight) AS weight
    FROM edges e
    WHERE e.team_id = $1
      AND (e.source_node_id = ANY($2::bigint[]) OR e.target_node_id = ANY($2::bigint[]))
    GROUP BY 1
) nb
JOIN nodes n ON n.id = nb.node_id
WHERE NOT (n.id = ANY($3::bigint[]))
ORDER BY nb.weight DESC, n.mention_count DESC, n.id
LIMIT $4`

const chunksForNodesSQL = `
SELECT ` + chunkColumns + `
FROM (
    SELECT DISTINCT ON (content) ` + chunkColumns + `
    FROM chunks
    WHERE team_id = $1 AND linked_node_ids && $2::bigint[]
    ORDER BY content, created_at DESC, id DESC
) c
ORDER BY created_at DESC, id DESC
LIMIT $3`

const recentChunksSQL = `
SELECT ` + chunkColumns + `
FROM chunks
WHERE team_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`

func (s *GraphDBStorage) SearchNodesByEmbedding(
	ctx context.Context,
	teamID int64,
	embedding []float32,
	limit int,
) ([]common.Node, error) {
	if len(embedding) == 0 || limit <= 0 {
		return []common.Node{}, nil
	}
	rows, err := s.conn.Query(ctx, searchNodesSQL, teamID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search nodes: %w", err)
	}
	return collectNodes(rows)
}

func (s *GraphDBStorage) NeighborNodes(
	ctx context.Context,
	teamID int64,
	nodeIDs []int64,
	excludeIDs []int64,
	limit int,
) ([]common.Node, error) {
	if len(nodeIDs) == 0 || limit <= 0 {
		return []common.Node{}, nil
	}
	if excludeIDs == nil {
		excludeIDs = []int64{}
	}
	rows, err := s.conn.Query(ctx, neighborNodesSQL, teamID, nodeIDs, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load neighbor nodes: %w", err)
	}
	return collectNodes(rows)
}

// ChunksForNodes returns the newest chunks linked to any of nodeIDs, one per
// distinct content.
func (s *GraphDBStorage) ChunksForNodes(
	ctx context.Context,
	teamID int64,
	nodeIDs []int64,
	limit int,
) ([]common.Chunk, error) {
	if len(nodeIDs) == 0 || limit <= 0 {
		return []common.Chunk{}, nil
	}
	rows, err := s.conn.Query(ctx, chunksForNodesSQL, teamID, nodeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks for nodes: %w", err)
	}
	return collectChunks(rows)
}

func (s *GraphDBStorage) RecentChunks(ctx context.Context, teamID int64, limit int) ([]common.Chunk, error) {
	if limit <= 0 {
		return []common.Chunk{}, nil
	}
	rows, err := s.conn.Query(ctx, recentChunksSQL, teamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent chunks: %w", err)
	}
	return collectChunks(rows)
}
