package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

const defaultFactCategory = "general"

const factColumns = `id, team_id, scope_id, content, entity_type, entity_name, attribute, value, category, confidence_score,
source_type, source_quote, source_url, created_by, valid_from, valid_until, superseded_by, context_tags`

const insertFactSQL = `
INSERT INTO facts (
    team_id, scope_id, content, entity_type, entity_name, attribute, value, category, confidence_score,
    source_type, source_quote, source_url, created_by, context_tags, embedding
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + factColumns

// Only the old row is touched; the newer fact keeps its validity.
const invalidateFactSQL = `
UPDATE facts
SET valid_until   = now(),
    superseded_by = $2
WHERE id = $1 AND valid_until IS NULL`

const getFactSQL = `
SELECT ` + factColumns + `
FROM facts
WHERE id = $1`

const listFactsSQL = `
SELECT ` + factColumns + `
FROM facts
WHERE team_id = $1
  AND ($2::bigint IS NULL OR scope_id = $2 OR scope_id IS NULL)
  AND ($3::boolean OR valid_until IS NULL)
ORDER BY valid_from DESC, id DESC`

const searchFactsSQL = `
SELECT ` + factColumns + `, 1 - (embedding <=> $3) AS similarity
FROM facts
WHERE team_id = $1
  AND valid_until IS NULL
  AND embedding IS NOT NULL
  AND ($2::bigint IS NULL OR scope_id = $2 OR scope_id IS NULL)
  AND 1 - (embedding <=> $3) >= $4
ORDER BY embedding <=> $3
LIMIT $5`

func factDest(f *common.Fact) []any {
	return []any{
		&f.ID,
		&f.TeamID,
		&f.ScopeID,
		&f.Content,
		&f.EntityType,
		&f.EntityName,
		&f.Attribute,
		&f.Value,
		&f.Category,
		&f.ConfidenceScore,
		&f.SourceType,
		&f.SourceQuote,
		&f.SourceURL,
		&f.CreatedBy,
		&f.ValidFrom,
		&f.ValidUntil,
		&f.SupersededBy,
		&f.ContextTags,
	}
}

func scanFact(row pgxv5.Row) (common.Fact, error) {
	var f common.Fact
	err := row.Scan(factDest(&f)...)
	return f, err
}

// CreateFact inserts a new fact. The embedding may be empty when the
// embedder was unavailable.
func (s *GraphDBStorage) CreateFact(ctx context.Context, fact common.Fact) (common.Fact, error) {
	fact.Content = util.CleanField(fact.Content)
	if fact.Content == "" {
		return common.Fact{}, errors.New("fact content is empty")
	}
	if fact.Category == "" {
		fact.Category = defaultFactCategory
	}
	if fact.ContextTags == nil {
		fact.ContextTags = []string{}
	}

	created, err := scanFact(s.conn.QueryRow(
		ctx,
		insertFactSQL,
		fact.TeamID,
		fact.ScopeID,
		fact.Content,
		fact.EntityType,
		fact.EntityName,
		fact.Attribute,
		fact.Value,
		fact.Category,
		fact.ConfidenceScore,
		fact.SourceType,
		fact.SourceQuote,
		fact.SourceURL,
		fact.CreatedBy,
		fact.ContextTags,
		toVector(fact.Embedding),
	))
	if err != nil {
		return common.Fact{}, fmt.Errorf("failed to insert fact: %w", err)
	}
	created.Embedding = fact.Embedding
	return created, nil
}

// InvalidateFact returns store.ErrNotFound when oldID does not exist or is
// already invalid.
func (s *GraphDBStorage) InvalidateFact(ctx context.Context, oldID int64, newID *int64) error {
	if newID != nil && *newID == oldID {
		return errors.New("a fact cannot supersede itself")
	}
	tag, err := s.conn.Exec(ctx, invalidateFactSQL, oldID, newID)
	if err != nil {
		return fmt.Errorf("failed to invalidate fact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *GraphDBStorage) GetFact(ctx context.Context, factID int64) (common.Fact, error) {
	fact, err := scanFact(s.conn.QueryRow(ctx, getFactSQL, factID))
	if err != nil {
		return common.Fact{}, notFound(err)
	}
	return fact, nil
}

func (s *GraphDBStorage) ListFacts(
	ctx context.Context,
	teamID int64,
	scopeID *int64,
	includeInvalid bool,
) ([]common.Fact, error) {
	rows, err := s.conn.Query(ctx, listFactsSQL, teamID, scopeID, includeInvalid)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer rows.Close()

	facts := make([]common.Fact, 0)
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

func (s *GraphDBStorage) SearchSimilarFacts(
	ctx context.Context,
	teamID int64,
	scopeID *int64,
	embedding []float32,
	limit int,
) ([]store.ScoredFact, error) {
	if len(embedding) == 0 || limit <= 0 {
		return []store.ScoredFact{}, nil
	}
	rows, err := s.conn.Query(
		ctx,
		searchFactsSQL,
		teamID,
		scopeID,
		pgvector.NewVector(embedding),
		s.factSimilarityMin,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search facts: %w", err)
	}
	defer rows.Close()

	out := make([]store.ScoredFact, 0)
	for rows.Next() {
		var sf store.ScoredFact
		dest := append(factDest(&sf.Fact), &sf.Similarity)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}
