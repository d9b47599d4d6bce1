package server

import (
	"fmt"

	"github.com/ravenloom/backend/internal/server/middleware"
	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/ai"
	"github.com/ravenloom/backend/pkg/facts"
	"github.com/ravenloom/backend/pkg/query"
	pgstore "github.com/ravenloom/backend/pkg/store/pgx"
)

// NewServices wires the graph and fact services on top of one storage.
// Previews live in process, so a confirm has to reach the server that
// created the preview.
func NewServices(storage *pgstore.GraphDBStorage, aiClient ai.GraphAIClient) (middleware.Services, error) {
	rag := query.NewGraphRAG(storage, aiClient)

	ask, err := query.NewAskService(query.NewAskServiceParams{
		Facts:     storage,
		GraphRAG:  rag,
		AIClient:  aiClient,
		FactLimit: int(util.GetEnvNumeric("ASK_FACT_LIMIT", query.DefaultFactLimit)),
		Search: query.SearchOptions{
			TopK:     int(util.GetEnvNumeric("GRAPHRAG_TOP_K", query.DefaultTopK)),
			HopDepth: int(util.GetEnvNumeric("GRAPHRAG_HOP_DEPTH", query.DefaultHopDepth)),
		},
	})
	if err != nil {
		return middleware.Services{}, fmt.Errorf("create ask service: %w", err)
	}

	remember, err := facts.NewRememberService(facts.NewRememberServiceParams{
		Facts:    storage,
		AIClient: aiClient,
		Detector: facts.DetectorFromEnv(),
		Previews: facts.NewTTLPreviewStore(util.GetEnvMinutes("PREVIEW_TTL_MIN", 60)),
	})
	if err != nil {
		return middleware.Services{}, fmt.Errorf("create remember service: %w", err)
	}

	return middleware.Services{
		Graph:    storage,
		Facts:    storage,
		GraphRAG: rag,
		Ask:      ask,
		Remember: remember,
	}, nil
}
