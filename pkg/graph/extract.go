package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
)

const (
	extractTemperature = 0.1
	extractMaxTokens   = 2000
)

// Extractor turns a passage of text into typed entities and relationships
// with a single model call.
type Extractor struct {
	client ai.GraphAIClient
	model  string
}

// NewExtractor returns an Extractor. An empty model uses the client's
// extraction default.
func NewExtractor(client ai.GraphAIClient, model string) *Extractor {
	return &Extractor{client: client, model: model}
}

// Extract never fails. Model errors and unparseable responses are logged
// and produce an empty result, so callers must cope with chunks that yield
// nothing.
func (e *Extractor) Extract(ctx context.Context, text string) common.ExtractionResult {
	empty := common.ExtractionResult{
		Entities:      []common.ExtractedEntity{},
		Relationships: []common.ExtractedRelationship{},
	}
	if strings.TrimSpace(text) == "" {
		return empty
	}

	prompt := fmt.Sprintf(
		ai.ExtractPrompt,
		strings.Join(common.ExtractableNodeTypes, ", "),
		strings.Join(common.RelationshipTypes, ", "),
		text,
	)
	raw, err := e.client.GenerateCompletion(
		ctx,
		prompt,
		ai.WithModel(e.model),
		ai.WithTemperature(extractTemperature),
		ai.WithMaxTokens(extractMaxTokens),
	)
	if err != nil {
		logger.Warn("[Graph] Extraction call failed", "err", err)
		return empty
	}

	res, err := ai.ParseJSONOr(raw, empty)
	if err != nil {
		logger.Warn("[Graph] Could not parse extraction response", "err", err)
		return empty
	}

	return normalizeExtraction(res)
}

func normalizeExtraction(res common.ExtractionResult) common.ExtractionResult {
	out := common.ExtractionResult{
		Entities:      make([]common.ExtractedEntity, 0, len(res.Entities)),
		Relationships: make([]common.ExtractedRelationship, 0, len(res.Relationships)),
	}
	for _, ent := range res.Entities {
		ent.Name = strings.TrimSpace(ent.Name)
		if ent.Name == "" {
			continue
		}
		ent.Type = strings.ToLower(strings.TrimSpace(ent.Type))
		if !slices.Contains(common.ExtractableNodeTypes, ent.Type) {
			ent.Type = common.NodeTypeConcept
		}
		ent.Description = strings.TrimSpace(ent.Description)
		out.Entities = append(out.Entities, ent)
	}
	for _, rel := range res.Relationships {
		rel.Source = strings.TrimSpace(rel.Source)
		rel.Target = strings.TrimSpace(rel.Target)
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		rel.Relationship = strings.ToLower(strings.TrimSpace(rel.Relationship))
		if !slices.Contains(common.RelationshipTypes, rel.Relationship) {
			rel.Relationship = common.DefaultRelationship
		}
		out.Relationships = append(out.Relationships, rel)
	}
	return out
}
