package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"

	pgxv5 "github.com/jackc/pgx/v5"
)

// EdgeWeightIncrement is added to an edge every time its triple is seen again.
const EdgeWeightIncrement = 0.1

const edgeColumns = `id, team_id, source_node_id, target_node_id, relationship, weight, source_type, source_id, created_at, updated_at`

// Most mentioned node wins, ties go to the newest row.
const resolveNodeSQL = `
SELECT id
FROM nodes
WHERE team_id = $1 AND lower(name) = lower($2)
ORDER BY mention_count DESC, created_at DESC, id DESC
LIMIT 1`

const reinforceEdgeSQL = `
UPDATE edges
SET weight     = weight + $4,
    updated_at = now()
WHERE source_node_id = $1 AND target_node_id = $2 AND relationship = $3
RETURNING ` + edgeColumns

const insertEdgeSQL = `
INSERT INTO edges (team_id, source_node_id, target_node_id, relationship, weight, source_type, source_id)
VALUES ($1, $2, $3, $4, 1.0, $5, $6)
RETURNING ` + edgeColumns

func scanEdge(row pgxv5.Row) (common.Edge, error) {
	var e common.Edge
	err := row.Scan(
		&e.ID,
		&e.TeamID,
		&e.SourceNodeID,
		&e.TargetNodeID,
		&e.Relationship,
		&e.Weight,
		&e.SourceType,
		&e.SourceID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	return e, err
}

func (s *GraphDBStorage) resolveNodeID(ctx context.Context, teamID int64, name string) (int64, bool, error) {
	var id int64
	err := s.conn.QueryRow(ctx, resolveNodeSQL, teamID, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// CreateEdge reinforces or inserts the edge between the two named nodes.
// Unresolvable endpoints and lost insert races yield nil without an error.
func (s *GraphDBStorage) CreateEdge(
	ctx context.Context,
	teamID int64,
	rel common.ExtractedRelationship,
	source common.SourceInfo,
) (*common.Edge, error) {
	sourceID, ok, err := s.resolveNodeID(ctx, teamID, rel.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source node: %w", err)
	}
	if !ok {
		return nil, nil
	}
	targetID, ok, err := s.resolveNodeID(ctx, teamID, rel.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target node: %w", err)
	}
	if !ok {
		return nil, nil
	}

	relationship := strings.TrimSpace(rel.Relationship)
	if relationship == "" {
		relationship = common.DefaultRelationship
	}

	edge, err := scanEdge(s.conn.QueryRow(ctx, reinforceEdgeSQL, sourceID, targetID, relationship, EdgeWeightIncrement))
	if err == nil {
		return &edge, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return nil, fmt.Errorf("failed to reinforce edge: %w", err)
	}

	edge, err = scanEdge(s.conn.QueryRow(
		ctx,
		insertEdgeSQL,
		teamID,
		sourceID,
		targetID,
		relationship,
		source.SourceType,
		source.SourceID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			logger.Debug("[Store] Edge insert lost race", "source", sourceID, "target", targetID, "relationship", relationship)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert edge: %w", err)
	}
	return &edge, nil
}
