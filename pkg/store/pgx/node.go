package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const nodeColumns = `id, team_id, name, type, description, mention_count, source_type, source_id, created_at, updated_at`

const bumpNodeSQL = `
UPDATE nodes
SET mention_count = mention_count + 1,
    description   = COALESCE(description, $4),
    updated_at    = now()
WHERE team_id = $1 AND lower(name) = lower($2) AND type = $3
RETURNING ` + nodeColumns

const insertNodeSQL = `
INSERT INTO nodes (team_id, name, type, description, embedding, mention_count, source_type, source_id)
VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
RETURNING ` + nodeColumns

const getNodeSQL = `
SELECT ` + nodeColumns + `
FROM nodes
WHERE team_id = $1 AND id = $2`

func scanNode(row pgxv5.Row) (common.Node, error) {
	var n common.Node
	err := row.Scan(
		&n.ID,
		&n.TeamID,
		&n.Name,
		&n.Type,
		&n.Description,
		&n.MentionCount,
		&n.SourceType,
		&n.SourceID,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	return n, err
}

func collectNodes(rows pgxv5.Rows) ([]common.Node, error) {
	defer rows.Close()
	nodes := make([]common.Node, 0)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// UpsertNode records a sighting of an entity. An existing node only gets its
// mention count raised and a missing description filled in; a new node is
// embedded and inserted.
func (s *GraphDBStorage) UpsertNode(
	ctx context.Context,
	teamID int64,
	entity common.ExtractedEntity,
	source common.SourceInfo,
) (common.Node, error) {
	entity.Name = util.CleanField(entity.Name)
	entity.Description = util.CleanField(entity.Description)
	if entity.Name == "" {
		return common.Node{}, errors.New("node name is empty")
	}
	if entity.Type == "" {
		entity.Type = common.NodeTypeConcept
	}
	desc := optionalText(entity.Description)

	node, err := scanNode(s.conn.QueryRow(ctx, bumpNodeSQL, teamID, entity.Name, entity.Type, desc))
	if err == nil {
		return node, nil
	}
	if !errors.Is(err, pgxv5.ErrNoRows) {
		return common.Node{}, fmt.Errorf("failed to update node: %w", err)
	}

	key := store.NodeKey(teamID, entity.Name, entity.Type)
	embedding := s.embed(ctx, key, store.NodeEmbeddingText(entity))

	node, err = scanNode(s.conn.QueryRow(
		ctx,
		insertNodeSQL,
		teamID,
		entity.Name,
		entity.Type,
		desc,
		toVector(embedding),
		source.SourceType,
		source.SourceID,
	))
	if err == nil {
		return node, nil
	}
	if !isUniqueViolation(err) {
		return common.Node{}, fmt.Errorf("failed to insert node: %w", err)
	}

	// Lost the insert race; count this sighting on the winner.
	node, err = scanNode(s.conn.QueryRow(ctx, bumpNodeSQL, teamID, entity.Name, entity.Type, desc))
	if err != nil {
		return common.Node{}, fmt.Errorf("failed to load node after conflict: %w", err)
	}
	return node, nil
}

func (s *GraphDBStorage) GetNode(ctx context.Context, teamID, nodeID int64) (common.Node, error) {
	node, err := scanNode(s.conn.QueryRow(ctx, getNodeSQL, teamID, nodeID))
	if err != nil {
		return common.Node{}, notFound(err)
	}
	return node, nil
}
