package graph

import (
	"errors"

	"github.com/ravenloom/backend/pkg/ai"
)

// GraphClient runs the ingestion pipeline: chunking, extraction and the
// graph upserts for every chunk of a document.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	chunkOpts ChunkOptions
	extractor *Extractor
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// AIClient is used for extraction. ExtractionModel overrides the client's
// extraction model when set. Zero ChunkOptions fields use the defaults.
type NewGraphClientParams struct {
	AIClient        ai.GraphAIClient
	ExtractionModel string
	ChunkOptions    ChunkOptions
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:     aiClient,
//		ChunkOptions: graph.ChunkOptions{TargetSize: 500, MaxSize: 800, OverlapChars: 50},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, errors.New("graph client requires an ai client")
	}
	return &GraphClient{
		chunkOpts: params.ChunkOptions.withDefaults(),
		extractor: NewExtractor(params.AIClient, params.ExtractionModel),
	}, nil
}
