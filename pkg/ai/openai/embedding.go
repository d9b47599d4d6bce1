package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ravenloom/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

const defaultDimensions = 1536

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model. Blank input yields nil so callers
// store the row without a vector.
//
// Example:
//
//	embedding, err := client.GenerateEmbedding(ctx, []byte("product: Fugly. A mobile game"))
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	text := strings.TrimSpace(string(input))
	if text == "" {
		return nil, nil
	}
	if c.EmbeddingClient == nil {
		return nil, errors.New("embedding client is not configured")
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: c.embeddingModel,
	}

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	c.Record(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}
	return fitDimensions(response.Data[0].Embedding, c.embeddingDim), nil
}

// fitDimensions truncates or zero pads a vector to dim entries.
func fitDimensions(in []float64, dim int) []float32 {
	vec := make([]float32, dim)
	for i := 0; i < len(in) && i < dim; i++ {
		vec[i] = float32(in[i])
	}
	return vec
}
