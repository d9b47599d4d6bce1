package graph

import (
	"context"
	"strings"
	"time"

	"github.com/ravenloom/backend/pkg/common"
	"github.com/ravenloom/backend/pkg/logger"
	"github.com/ravenloom/backend/pkg/store"
)

// Document is the input of ProcessDocument. ID is used as the source id of
// the stored rows when the SourceInfo carries none.
type Document struct {
	ID      string
	Title   string
	Content string
}

// ProcessResult counts what ProcessDocument stored.
type ProcessResult struct {
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
	Chunks int `json:"chunks"`
}

// ProcessDocument chunks the document and feeds every chunk through the
// extractor into the graph. Chunks are handled strictly in document order.
// Failures of single entities, edges or chunk rows are logged and skipped;
// only a cancelled context aborts the run.
func (g *GraphClient) ProcessDocument(
	ctx context.Context,
	teamID int64,
	doc Document,
	source common.SourceInfo,
	storeClient store.GraphStorage,
) (ProcessResult, error) {
	var res ProcessResult
	start := time.Now()

	if source.SourceID == nil && doc.ID != "" {
		id := doc.ID
		source.SourceID = &id
	}
	var title *string
	if t := strings.TrimSpace(doc.Title); t != "" {
		title = &t
	}

	chunks := ChunkText(doc.Content, g.chunkOpts)
	logger.Info("[Graph] Processing document", "team_id", teamID, "title", doc.Title, "chunks", len(chunks))

	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		extraction := g.extractor.Extract(ctx, chunk)

		nodeIDs := make([]int64, 0, len(extraction.Entities))
		for _, entity := range extraction.Entities {
			node, err := storeClient.UpsertNode(ctx, teamID, entity, source)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				logger.Warn("[Graph] Failed to upsert node", "name", entity.Name, "type", entity.Type, "err", err)
				continue
			}
			nodeIDs = append(nodeIDs, node.ID)
			res.Nodes++
		}

		for _, rel := range extraction.Relationships {
			edge, err := storeClient.CreateEdge(ctx, teamID, rel, source)
			if err != nil {
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				logger.Warn("[Graph] Failed to create edge", "source", rel.Source, "target", rel.Target, "err", err)
				continue
			}
			if edge == nil {
				logger.Debug("[Graph] Skipped edge with unresolved endpoint", "source", rel.Source, "target", rel.Target)
				continue
			}
			res.Edges++
		}

		if _, err := storeClient.SaveChunk(ctx, teamID, chunk, source, title, store.DedupeIDs(nodeIDs)); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			logger.Warn("[Graph] Failed to save chunk", "index", idx, "err", err)
			continue
		}
		res.Chunks++
	}

	logger.Info(
		"[Graph] Document processed",
		"team_id", teamID,
		"nodes", res.Nodes,
		"edges", res.Edges,
		"chunks", res.Chunks,
		"duration", time.Since(start),
	)
	return res, nil
}
