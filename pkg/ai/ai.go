package ai

import (
	"context"
)

// GenerateOptions holds configuration for AI generation requests.
type GenerateOptions struct {
	Model         string   // Model identifier to use for generation
	SystemPrompts []string // System prompts prepended to the request
	Temperature   float64  // Sampling temperature (0.0-2.0)
	MaxTokens     int64    // Upper bound for generated tokens, 0 means provider default
}

// ModelMetrics contains performance metrics from AI model operations.
type ModelMetrics struct {
	InputTokens    int     `json:"input_tokens"`
	OutputTokens   int     `json:"output_tokens"`
	TotalTokens    int     `json:"total_tokens"`
	DurationMs     int64   `json:"duration_ms"`
	TokenPerSecond float32 `json:"tokens_per_second"`
}

// GenerateOption is a functional option for configuring AI generation requests.
type GenerateOption func(*GenerateOptions)

// WithModel returns a GenerateOption that sets the model to use for generation.
// An empty model keeps the client default.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

// WithSystemPrompts returns a GenerateOption that sets the system prompts
// to prepend to the generation request.
func WithSystemPrompts(prompts ...string) GenerateOption {
	return func(o *GenerateOptions) {
		o.SystemPrompts = prompts
	}
}

// WithTemperature returns a GenerateOption that sets the sampling temperature.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = temp
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(n int64) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// ApplyOptions folds opts over the given defaults.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	for _, o := range opts {
		if o != nil {
			o(&defaults)
		}
	}
	return defaults
}

// GraphAIClient is the model surface used by ingestion, retrieval and the
// remember flow. Implementations exist for OpenAI compatible APIs and Ollama.
type GraphAIClient interface {
	// GenerateCompletion returns the raw assistant text for a single prompt.
	// The text may contain a fenced ```json block; see ParseJSONOr.
	GenerateCompletion(
		ctx context.Context,
		prompt string,
		opts ...GenerateOption,
	) (string, error)
	// GenerateCompletionWithFormat requests schema constrained output and
	// unmarshals it into out.
	GenerateCompletionWithFormat(
		ctx context.Context,
		name string,
		description string,
		prompt string,
		out any,
		opts ...GenerateOption,
	) error

	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)

	ResetMetrics()
	GetMetrics() ModelMetrics
}
