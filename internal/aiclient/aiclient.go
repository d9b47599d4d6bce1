package aiclient

import (
	"time"

	"github.com/ravenloom/backend/internal/util"
	"github.com/ravenloom/backend/pkg/ai"
	oai "github.com/ravenloom/backend/pkg/ai/ollama"
	gai "github.com/ravenloom/backend/pkg/ai/openai"
)

const (
	AdapterOpenAI = "openai"
	AdapterOllama = "ollama"
)

// Config selects and configures the model backend. Any adapter other than
// AdapterOllama uses the OpenAI compatible client.
type Config struct {
	Adapter string

	ChatURL         string
	ChatKey         string
	ChatModel       string
	ExtractionModel string

	EmbeddingURL   string
	EmbeddingKey   string
	EmbeddingModel string
	EmbeddingDim   int

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Adapter: util.GetEnvString("AI_ADAPTER", AdapterOpenAI),

		ChatURL:         util.GetEnv("AI_CHAT_URL"),
		ChatKey:         util.GetEnv("AI_CHAT_KEY"),
		ChatModel:       util.GetEnv("AI_CHAT_MODEL"),
		ExtractionModel: util.GetEnv("AI_EXTRACT_MODEL"),

		EmbeddingURL:   util.GetEnv("AI_EMBED_URL"),
		EmbeddingKey:   util.GetEnv("AI_EMBED_KEY"),
		EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
		EmbeddingDim:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),

		MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		Timeout:               util.GetEnvMinutes("AI_TIMEOUT_MIN", 5),
	}
}

// New builds the client once per process. The ollama adapter talks to a
// single server, so the embedding url and key are ignored there.
func New(cfg Config) (ai.GraphAIClient, error) {
	switch cfg.Adapter {
	case AdapterOllama:
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ChatModel:       cfg.ChatModel,
			ExtractionModel: cfg.ExtractionModel,
			EmbeddingModel:  cfg.EmbeddingModel,
			EmbeddingDim:    cfg.EmbeddingDim,

			BaseURL: cfg.ChatURL,
			ApiKey:  cfg.ChatKey,

			MaxConcurrentRequests: cfg.MaxConcurrentRequests,
			Timeout:               cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ChatModel:       cfg.ChatModel,
			ExtractionModel: cfg.ExtractionModel,
			EmbeddingModel:  cfg.EmbeddingModel,
			EmbeddingDim:    cfg.EmbeddingDim,

			EmbeddingURL: cfg.EmbeddingURL,
			EmbeddingKey: cfg.EmbeddingKey,
			ChatURL:      cfg.ChatURL,
			ChatKey:      cfg.ChatKey,

			MaxConcurrentRequests: cfg.MaxConcurrentRequests,
			Timeout:               cfg.Timeout,
		}), nil
	}
}
