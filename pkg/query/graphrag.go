package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"
)

const (
	DefaultTopK     = 5
	DefaultHopDepth = 1

	maxRelatedNodes = 10
	maxChunks       = 10
)

// SearchOptions controls GraphRAG.Search. Zero values use the defaults.
// HopDepth greater than one expands the neighbours found in the previous
// hop again, up to maxRelatedNodes related nodes in total.
type SearchOptions struct {
	TopK     int `json:"top_k"`
	HopDepth int `json:"hop_depth"`
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.HopDepth <= 0 {
		o.HopDepth = DefaultHopDepth
	}
	return o
}

type SearchResult struct {
	EntryNodes   []common.Node  `json:"entry_nodes"`
	RelatedNodes []common.Node  `json:"related_nodes"`
	Chunks       []common.Chunk `json:"chunks"`
}

func emptySearchResult() SearchResult {
	return SearchResult{
		EntryNodes:   []common.Node{},
		RelatedNodes: []common.Node{},
		Chunks:       []common.Chunk{},
	}
}

// IsEmpty reports whether the search produced nothing to answer from.
func (r SearchResult) IsEmpty() bool {
	return len(r.EntryNodes) == 0 && len(r.RelatedNodes) == 0 && len(r.Chunks) == 0
}

// GraphRAG retrieves context for a question: the nodes closest to the
// question embedding, their graph neighbourhood and the chunks those nodes
// were found in. Teams without matching nodes get their most recent chunks.
type GraphRAG struct {
	store    store.GraphStorage
	aiClient ai.GraphAIClient
	tracer   Tracer
}

type GraphRAGOption func(*GraphRAG)

// WithTracer records every search of this GraphRAG.
func WithTracer(t Tracer) GraphRAGOption {
	return func(g *GraphRAG) {
		g.tracer = t
	}
}

func NewGraphRAG(storage store.GraphStorage, aiClient ai.GraphAIClient, opts ...GraphRAGOption) *GraphRAG {
	g := &GraphRAG{store: storage, aiClient: aiClient}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Search never fails because of the embedding model: a failed or empty
// embedding yields an empty result. Storage errors are returned.
func (g *GraphRAG) Search(ctx context.Context, teamID int64, query string, opts SearchOptions) (SearchResult, error) {
	emb := g.embed(ctx, query)
	return g.searchWithEmbedding(ctx, teamID, emb, opts, g.tracer)
}

func (g *GraphRAG) embed(ctx context.Context, text string) []float32 {
	text = strings.TrimSpace(text)
	if text == "" || g.aiClient == nil {
		return nil
	}
	emb, err := g.aiClient.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		logger.Warn("[Query] Failed to embed query", "err", err)
		return nil
	}
	return emb
}

func (g *GraphRAG) searchWithEmbedding(
	ctx context.Context,
	teamID int64,
	emb []float32,
	opts SearchOptions,
	tracer Tracer,
) (SearchResult, error) {
	res := emptySearchResult()
	if len(emb) == 0 {
		return res, nil
	}
	opts = opts.withDefaults()

	entry, err := g.store.SearchNodesByEmbedding(ctx, teamID, emb, opts.TopK)
	if err != nil {
		return res, fmt.Errorf("search entry nodes: %w", err)
	}

	if len(entry) == 0 {
		chunks, err := g.store.RecentChunks(ctx, teamID, opts.TopK)
		if err != nil {
			return res, fmt.Errorf("load recent chunks: %w", err)
		}
		if chunks != nil {
			res.Chunks = chunks
		}
		record(tracer, TraceEventRecentFallback, 0, chunkIDs(chunks)...)
		return res, nil
	}
	res.EntryNodes = entry
	record(tracer, TraceEventEntryNodeIDs, 0, nodeIDs(entry)...)

	seen := nodeIDs(entry)
	frontier := nodeIDs(entry)
	for hop := 1; hop <= opts.HopDepth && len(frontier) > 0 && len(res.RelatedNodes) < maxRelatedNodes; hop++ {
		neighbors, err := g.store.NeighborNodes(ctx, teamID, frontier, seen, maxRelatedNodes-len(res.RelatedNodes))
		if err != nil {
			return res, fmt.Errorf("expand hop %d: %w", hop, err)
		}
		next := make([]int64, 0, len(neighbors))
		for _, n := range neighbors {
			if len(res.RelatedNodes) >= maxRelatedNodes {
				break
			}
			res.RelatedNodes = append(res.RelatedNodes, n)
			seen = append(seen, n.ID)
			next = append(next, n.ID)
		}
		record(tracer, TraceEventRelatedNodeIDs, hop, next...)
		frontier = next
	}

	ids := append(nodeIDs(res.EntryNodes), nodeIDs(res.RelatedNodes)...)
	chunks, err := g.store.ChunksForNodes(ctx, teamID, ids, maxChunks)
	if err != nil {
		return res, fmt.Errorf("load chunks: %w", err)
	}
	if chunks != nil {
		res.Chunks = chunks
	}
	record(tracer, TraceEventChunkIDs, 0, chunkIDs(chunks)...)

	return res, nil
}

func nodeIDs(nodes []common.Node) []int64 {
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func chunkIDs(chunks []common.Chunk) []int64 {
	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids
}
