package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

const chunkColumns = `id, team_id, content, source_type, source_id, source_title, linked_node_ids, created_at`

const insertChunkSQL = `
INSERT INTO chunks (team_id, content, embedding, source_type, source_id, source_title, linked_node_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + chunkColumns

func scanChunk(row pgxv5.Row) (common.Chunk, error) {
	var c common.Chunk
	err := row.Scan(
		&c.ID,
		&c.TeamID,
		&c.Content,
		&c.SourceType,
		&c.SourceID,
		&c.SourceTitle,
		&c.LinkedNodeIDs,
		&c.CreatedAt,
	)
	return c, err
}

func collectChunks(rows pgxv5.Rows) ([]common.Chunk, error) {
	defer rows.Close()
	chunks := make([]common.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// SaveChunk embeds and stores a chunk. Chunks are never updated afterwards.
func (s *GraphDBStorage) SaveChunk(
	ctx context.Context,
	teamID int64,
	content string,
	source common.SourceInfo,
	title *string,
	linkedNodeIDs []int64,
) (common.Chunk, error) {
	content = util.SanitizePostgresText(content)
	if strings.TrimSpace(content) == "" {
		return common.Chunk{}, errors.New("chunk content is empty")
	}
	if linkedNodeIDs == nil {
		linkedNodeIDs = []int64{}
	}

	embedding := s.embed(ctx, fmt.Sprintf("chunk|%d|%s", teamID, content), content)

	chunk, err := scanChunk(s.conn.QueryRow(
		ctx,
		insertChunkSQL,
		teamID,
		content,
		toVector(embedding),
		source.SourceType,
		source.SourceID,
		title,
		linkedNodeIDs,
	))
	if err != nil {
		return common.Chunk{}, fmt.Errorf("failed to insert chunk: %w", err)
	}
	return chunk, nil
}
