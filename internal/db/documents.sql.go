package db

import (
	"context"

	"github.com/ravenloom/backend/pkg/common"
)

const createDocument = `-- name: CreateDocument :one
INSERT INTO documents (team_id, title, source_type, location, status, created_by)
VALUES ($1, $2, $3, $4, 'pending', $5)
RETURNING id, team_id, title, source_type, location, status, created_by, created_at, updated_at
`

type CreateDocumentParams struct {
	TeamID     int64  `json:"team_id"`
	Title      string `json:"title"`
	SourceType string `json:"source_type"`
	Location   string `json:"location"`
	CreatedBy  int64  `json:"created_by"`
}

func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (common.Document, error) {
	row := q.db.QueryRow(ctx, createDocument,
		arg.TeamID,
		arg.Title,
		arg.SourceType,
		arg.Location,
		arg.CreatedBy,
	)
	var i common.Document
	err := row.Scan(
		&i.ID,
		&i.TeamID,
		&i.Title,
		&i.SourceType,
		&i.Location,
		&i.Status,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getDocument = `-- name: GetDocument :one
SELECT id, team_id, title, source_type, location, status, created_by, created_at, updated_at
FROM documents
WHERE id = $1
`

func (q *Queries) GetDocument(ctx context.Context, id int64) (common.Document, error) {
	row := q.db.QueryRow(ctx, getDocument, id)
	var i common.Document
	err := row.Scan(
		&i.ID,
		&i.TeamID,
		&i.Title,
		&i.SourceType,
		&i.Location,
		&i.Status,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTeamDocuments = `-- name: ListTeamDocuments :many
SELECT id, team_id, title, source_type, location, status, created_by, created_at, updated_at
FROM documents
WHERE team_id = $1
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListTeamDocuments(ctx context.Context, teamID int64) ([]common.Document, error) {
	rows, err := q.db.Query(ctx, listTeamDocuments, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []common.Document{}
	for rows.Next() {
		var i common.Document
		if err := rows.Scan(
			&i.ID,
			&i.TeamID,
			&i.Title,
			&i.SourceType,
			&i.Location,
			&i.Status,
			&i.CreatedBy,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateDocumentStatus = `-- name: UpdateDocumentStatus :exec
UPDATE documents
SET status = $2, updated_at = now()
WHERE id = $1
`

type UpdateDocumentStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateDocumentStatus(ctx context.Context, arg UpdateDocumentStatusParams) error {
	_, err := q.db.Exec(ctx, updateDocumentStatus, arg.ID, arg.Status)
	return err
}

const listStaleDocuments = `-- name: ListStaleDocuments :many
SELECT id, team_id, title, source_type, location, status, created_by, created_at, updated_at
FROM documents
WHERE status = 'processing'
  AND updated_at < now() - ($1::bigint * interval '1 millisecond')
ORDER BY updated_at
`

// ListStaleDocuments returns documents stuck in processing for longer than
// staleAfterMs, usually because a worker died mid-run.
func (q *Queries) ListStaleDocuments(ctx context.Context, staleAfterMs int64) ([]common.Document, error) {
	rows, err := q.db.Query(ctx, listStaleDocuments, staleAfterMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []common.Document{}
	for rows.Next() {
		var i common.Document
		if err := rows.Scan(
			&i.ID,
			&i.TeamID,
			&i.Title,
			&i.SourceType,
			&i.Location,
			&i.Status,
			&i.CreatedBy,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteSourceChunks = `-- name: DeleteSourceChunks :execrows
DELETE FROM chunks
WHERE team_id = $1 AND source_type = $2 AND source_id = $3
`

type DeleteSourceChunksParams struct {
	TeamID     int64  `json:"team_id"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// DeleteSourceChunks removes the chunks an earlier, interrupted run saved
// for a source.
func (q *Queries) DeleteSourceChunks(ctx context.Context, arg DeleteSourceChunksParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteSourceChunks, arg.TeamID, arg.SourceType, arg.SourceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
