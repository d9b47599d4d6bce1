package ollama

import (
	"context"
	"strings"

	"github.com/ravenloom/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

const defaultDimensions = 1024

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama. Blank input yields nil.
func (c *GraphOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	text := strings.TrimSpace(string(input))
	if text == "" {
		return nil, nil
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	res, err := c.Client.Embed(rCtx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	c.Record(ai.ModelMetrics{
		InputTokens: res.PromptEvalCount,
		TotalTokens: res.PromptEvalCount,
		DurationMs:  res.TotalDuration.Milliseconds(),
	})

	out := make([]float32, c.embeddingDim)
	if len(res.Embeddings) == 0 {
		return out, nil
	}
	copy(out, res.Embeddings[0])
	return out, nil
}
