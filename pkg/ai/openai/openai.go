package openai

import (
	"time"

	"github.com/ravenloom/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient talks to an OpenAI compatible API. Chat and embedding
// traffic can point at different endpoints, which is common when embeddings
// are served by a self-hosted model.
//
// A GraphOpenAIClient should be created using NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	chatModel       string
	extractionModel string
	embeddingModel  string
	embeddingDim    int

	chatURL string
	timeout time.Duration

	reqLock *semaphore.Weighted

	ai.MetricsRecorder

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams defines the configuration parameters for creating
// a new GraphOpenAIClient.
//
// ChatModel is used for free text completions (answers), ExtractionModel for
// schema constrained output. EmbeddingDim truncates or pads vectors so they
// fit the vector columns.
type NewGraphOpenAIClientParams struct {
	ChatModel       string
	ExtractionModel string
	EmbeddingModel  string
	EmbeddingDim    int

	EmbeddingURL string
	EmbeddingKey string
	ChatURL      string
	ChatKey      string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

// NewGraphOpenAIClient creates a client with separate chat and embedding
// connections.
//
// Example:
//
//	client := openai.NewGraphOpenAIClient(openai.NewGraphOpenAIClientParams{
//		ChatModel:      "gpt-4o-mini",
//		EmbeddingModel: "text-embedding-3-small",
//		EmbeddingDim:   1536,
//		ChatKey:        os.Getenv("AI_CHAT_KEY"),
//		EmbeddingKey:   os.Getenv("AI_EMBED_KEY"),
//	})
func NewGraphOpenAIClient(
	params NewGraphOpenAIClientParams,
) *GraphOpenAIClient {
	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 15
	}
	if params.Timeout <= 0 {
		params.Timeout = 5 * time.Minute
	}
	if params.ExtractionModel == "" {
		params.ExtractionModel = params.ChatModel
	}
	if params.EmbeddingDim <= 0 {
		params.EmbeddingDim = defaultDimensions
	}

	return &GraphOpenAIClient{
		chatModel:       params.ChatModel,
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,
		embeddingDim:    params.EmbeddingDim,

		chatURL: params.ChatURL,
		timeout: params.Timeout,

		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
