package facts

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
)

const DefaultCategory = "general"

// Categories offered to the model for atomic facts.
var Categories = []string{
	DefaultCategory,
	"product",
	"process",
	"people",
	"policy",
	"decision",
	"metric",
}

// ExtractedFact is an atomic fact proposed by the model. Empty optional
// fields mean the fact is not about an entity attribute.
type ExtractedFact struct {
	Content    string `json:"content" jsonschema:"description=One self-contained statement"`
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
	Attribute  string `json:"attribute"`
	Value      string `json:"value"`
	Category   string `json:"category"`
}

type atomicFactsResponse struct {
	Facts []ExtractedFact `json:"facts"`
}

// FactExtractor decomposes a statement into atomic facts.
type FactExtractor struct {
	client ai.GraphAIClient
	model  string
}

func NewFactExtractor(client ai.GraphAIClient, model string) *FactExtractor {
	return &FactExtractor{client: client, model: model}
}

// Extract never fails: without a usable model answer the statement itself
// is returned as the only fact.
func (e *FactExtractor) Extract(ctx context.Context, statement string) []ExtractedFact {
	statement = strings.TrimSpace(statement)
	fallback := []ExtractedFact{{Content: statement, Category: DefaultCategory}}
	if statement == "" {
		return nil
	}

	var res atomicFactsResponse
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"atomic_facts",
		"Atomic facts contained in a statement",
		fmt.Sprintf(ai.AtomicFactsPrompt, statement),
		&res,
		ai.WithModel(e.model),
		ai.WithTemperature(0.1),
	)
	if err != nil {
		logger.Warn("[Facts] Atomic fact extraction failed, keeping statement", "err", err)
		return fallback
	}

	out := make([]ExtractedFact, 0, len(res.Facts))
	for _, f := range res.Facts {
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" {
			continue
		}
		f.EntityType = strings.ToLower(strings.TrimSpace(f.EntityType))
		f.EntityName = strings.TrimSpace(f.EntityName)
		f.Attribute = strings.TrimSpace(f.Attribute)
		f.Value = strings.TrimSpace(f.Value)
		f.Category = strings.ToLower(strings.TrimSpace(f.Category))
		if !slices.Contains(Categories, f.Category) {
			f.Category = DefaultCategory
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToFact builds the row for an extracted fact. Provenance fields are
// filled by the caller.
func (f ExtractedFact) ToFact(teamID int64, scopeID *int64, createdBy int64) common.Fact {
	return common.Fact{
		TeamID:          teamID,
		ScopeID:         scopeID,
		Content:         f.Content,
		EntityType:      optional(f.EntityType),
		EntityName:      optional(f.EntityName),
		Attribute:       optional(f.Attribute),
		Value:           optional(f.Value),
		Category:        f.Category,
		ConfidenceScore: 1,
		CreatedBy:       createdBy,
		ContextTags:     []string{},
	}
}

func embedText(ctx context.Context, client ai.GraphAIClient, text string) []float32 {
	emb, err := client.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		logger.Warn("[Facts] Failed to embed fact", "err", err)
		return nil
	}
	return emb
}
