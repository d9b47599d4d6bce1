package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultFactLimit = 10

	askTemperature   = 0.2
	citationTextSize = 160
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// Citation kinds.
const (
	CitationKindFact  = "fact"
	CitationKindNode  = "node"
	CitationKindChunk = "chunk"
)

// Citation resolves a [[id]] tag of an answer to the row it refers to.
type Citation struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	RefID int64  `json:"ref_id"`
	Text  string `json:"text"`
}

type AskResult struct {
	Answer    string             `json:"answer"`
	Facts     []store.ScoredFact `json:"facts"`
	Search    SearchResult       `json:"search"`
	Citations []Citation         `json:"citations"`
	Trace     QueryTraceSnapshot `json:"trace"`
}

// AskService answers questions of a scope from the team's facts and
// knowledge graph.
//
// An AskService should be created using NewAskService.
type AskService struct {
	facts     store.FactStorage
	rag       *GraphRAG
	aiClient  ai.GraphAIClient
	model     string
	factLimit int
	search    SearchOptions
}

// NewAskServiceParams configures an AskService. Model overrides the chat
// model of AIClient when set. FactLimit and Search fall back to the
// package defaults.
type NewAskServiceParams struct {
	Facts     store.FactStorage
	GraphRAG  *GraphRAG
	AIClient  ai.GraphAIClient
	Model     string
	FactLimit int
	Search    SearchOptions
}

func NewAskService(params NewAskServiceParams) (*AskService, error) {
	if params.Facts == nil || params.GraphRAG == nil || params.AIClient == nil {
		return nil, errors.New("ask service requires fact storage, graphrag and an ai client")
	}
	limit := params.FactLimit
	if limit <= 0 {
		limit = DefaultFactLimit
	}
	return &AskService{
		facts:     params.Facts,
		rag:       params.GraphRAG,
		aiClient:  params.AIClient,
		model:     params.Model,
		factLimit: limit,
		search:    params.Search.withDefaults(),
	}, nil
}

// Ask retrieves facts and graph context concurrently and lets the model
// answer from them. Without any context the model is told to report that
// nothing is known. Errors of the answer model are returned.
func (s *AskService) Ask(ctx context.Context, scopeID, userID int64, question string) (AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return AskResult{}, ErrEmptyQuestion
	}

	scope, err := s.facts.GetScope(ctx, scopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AskResult{}, facts.ErrScopeNotFound
		}
		return AskResult{}, fmt.Errorf("load scope: %w", err)
	}

	start := time.Now()
	logger.Info("[Query] Ask", "scope_id", scope.ID, "team_id", scope.TeamID, "user_id", userID)

	trace := NewQueryTrace()
	tracer := MultiTracer{trace, s.rag.tracer}
	emb := s.rag.embed(ctx, question)

	var (
		factHits []store.ScoredFact
		search   SearchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(emb) == 0 {
			return nil
		}
		hits, err := s.facts.SearchSimilarFacts(gctx, scope.TeamID, &scope.ID, emb, s.factLimit)
		if err != nil {
			return fmt.Errorf("search facts: %w", err)
		}
		factHits = hits
		ids := make([]int64, 0, len(hits))
		for _, h := range hits {
			ids = append(ids, h.Fact.ID)
		}
		record(tracer, TraceEventFactIDs, 0, ids...)
		return nil
	})
	g.Go(func() error {
		res, err := s.rag.searchWithEmbedding(gctx, scope.TeamID, emb, s.search, tracer)
		if err != nil {
			return err
		}
		search = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return AskResult{}, err
	}
	if factHits == nil {
		factHits = []store.ScoredFact{}
	}

	contextBlock, refs := buildContext(factHits, search)

	var prompt string
	if len(refs) == 0 {
		prompt = fmt.Sprintf(ai.NoDataPrompt, question)
	} else {
		prompt = fmt.Sprintf(ai.AskPrompt, contextBlock, question)
	}
	answer, err := s.aiClient.GenerateCompletion(
		ctx,
		prompt,
		ai.WithModel(s.model),
		ai.WithTemperature(askTemperature),
	)
	if err != nil {
		return AskResult{}, fmt.Errorf("generate answer: %w", err)
	}
	answer = util.NormalizeIDs(strings.TrimSpace(answer))

	citations := make([]Citation, 0)
	for _, id := range util.ExtractCitationIDs(answer) {
		if c, ok := refs[id]; ok {
			citations = append(citations, c)
		}
	}

	logger.Info("[Query] Answered",
		"scope_id", scope.ID,
		"facts", len(factHits),
		"chunks", len(search.Chunks),
		"citations", len(citations),
		"duration", time.Since(start),
	)

	return AskResult{
		Answer:    answer,
		Facts:     factHits,
		Search:    search,
		Citations: citations,
		Trace:     trace.Snapshot(),
	}, nil
}

// buildContext renders the retrieved rows as tagged lines and returns the
// citations the tags resolve to.
func buildContext(hits []store.ScoredFact, search SearchResult) (string, map[string]Citation) {
	refs := make(map[string]Citation)
	var b strings.Builder

	if len(hits) > 0 {
		b.WriteString("## Facts\n")
		for _, h := range hits {
			id := util.CitationID(util.CitationFact, h.Fact.ID)
			fmt.Fprintf(&b, "[[%s]] %s\n", id, h.Fact.Content)
			refs[id] = Citation{ID: id, Kind: CitationKindFact, RefID: h.Fact.ID, Text: h.Fact.Content}
		}
		b.WriteString("\n")
	}

	nodes := append(append([]common.Node{}, search.EntryNodes...), search.RelatedNodes...)
	if len(nodes) > 0 {
		b.WriteString("## Entities\n")
		for _, n := range nodes {
			id := util.CitationID(util.CitationNode, n.ID)
			if _, ok := refs[id]; ok {
				continue
			}
			fmt.Fprintf(&b, "[[%s]] %s (%s)", id, n.Name, n.Type)
			if n.Description != nil && *n.Description != "" {
				fmt.Fprintf(&b, ": %s", *n.Description)
			}
			b.WriteString("\n")
			refs[id] = Citation{ID: id, Kind: CitationKindNode, RefID: n.ID, Text: n.Name}
		}
		b.WriteString("\n")
	}

	if len(search.Chunks) > 0 {
		b.WriteString("## Document excerpts\n")
		for _, c := range search.Chunks {
			id := util.CitationID(util.CitationChunk, c.ID)
			if c.SourceTitle != nil && *c.SourceTitle != "" {
				fmt.Fprintf(&b, "[[%s]] (from %s) %s\n\n", id, *c.SourceTitle, c.Content)
			} else {
				fmt.Fprintf(&b, "[[%s]] %s\n\n", id, c.Content)
			}
			refs[id] = Citation{ID: id, Kind: CitationKindChunk, RefID: c.ID, Text: chunkCitationText(c)}
		}
	}

	return strings.TrimSpace(b.String()), refs
}

func chunkCitationText(c common.Chunk) string {
	if c.SourceTitle != nil && *c.SourceTitle != "" {
		return *c.SourceTitle
	}
	runes := []rune(c.Content)
	if len(runes) <= citationTextSize {
		return c.Content
	}
	return strings.TrimSpace(string(runes[:citationTextSize])) + "…"
}
