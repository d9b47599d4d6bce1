package ollama

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ravenloom/backend/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements ai.GraphAIClient against a (possibly remote)
// Ollama server.
type GraphOllamaClient struct {
	chatModel       string
	extractionModel string
	embeddingModel  string
	embeddingDim    int

	timeout time.Duration
	reqLock *semaphore.Weighted

	ai.MetricsRecorder

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	ChatModel       string
	ExtractionModel string
	EmbeddingModel  string
	EmbeddingDim    int

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
	Timeout               time.Duration
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient connects to the Ollama server at BaseURL (or the
// library default when empty).
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}

	if params.MaxConcurrentRequests <= 0 {
		params.MaxConcurrentRequests = 4
	}
	if params.Timeout <= 0 {
		params.Timeout = 10 * time.Minute
	}
	if params.ExtractionModel == "" {
		params.ExtractionModel = params.ChatModel
	}
	if params.EmbeddingDim <= 0 {
		params.EmbeddingDim = defaultDimensions
	}

	return &GraphOllamaClient{
		chatModel:       params.ChatModel,
		extractionModel: params.ExtractionModel,
		embeddingModel:  params.EmbeddingModel,
		embeddingDim:    params.EmbeddingDim,

		timeout: params.Timeout,
		reqLock: semaphore.NewWeighted(params.MaxConcurrentRequests),

		Client: api.NewClient(u, httpClient),
	}, nil
}
