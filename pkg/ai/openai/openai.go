// Package openai implements the ai.Client contract on top of any
// OpenAI-compatible chat and embedding API.
package openai

import (
	"errors"
	"sync"

	"github.com/mangrove-ai/mangrove/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// Client talks to an OpenAI-compatible endpoint. Concurrent requests
// are capped by an internal semaphore so batch ingestion cannot
// overwhelm the provider.
//
// A Client should be created using New.
type Client struct {
	chatModel      string
	extractModel   string
	embeddingModel string
	embeddingDim   int

	sem *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	api      *openai.Client
	embedAPI *openai.Client
}

// Params configures a new Client.
//
// ChatModel is used for answer synthesis and summarization,
// ExtractModel for structured extraction, EmbeddingModel for vectors.
// EmbeddingDim is the dimension vectors are truncated or padded to.
// MaxParallel caps in-flight requests; values below 1 mean 1.
type Params struct {
	ChatModel      string
	ExtractModel   string
	EmbeddingModel string
	EmbeddingDim   int

	BaseURL string
	APIKey  string

	// EmbeddingURL and EmbeddingKey point embeddings at a different
	// endpoint. When empty, embeddings use BaseURL/APIKey.
	EmbeddingURL string
	EmbeddingKey string

	MaxParallel int
}

// New creates a Client for the given endpoint and models.
func New(params Params) *Client {
	api := newAPIClient(params.BaseURL, params.APIKey)
	embedAPI := api
	if params.EmbeddingURL != "" || params.EmbeddingKey != "" {
		baseURL, apiKey := params.EmbeddingURL, params.EmbeddingKey
		if baseURL == "" {
			baseURL = params.BaseURL
		}
		if apiKey == "" {
			apiKey = params.APIKey
		}
		embedAPI = newAPIClient(baseURL, apiKey)
	}

	parallel := params.MaxParallel
	if parallel < 1 {
		parallel = 1
	}

	return &Client{
		chatModel:      params.ChatModel,
		extractModel:   params.ExtractModel,
		embeddingModel: params.EmbeddingModel,
		embeddingDim:   params.EmbeddingDim,
		sem:            semaphore.NewWeighted(int64(parallel)),
		api:            api,
		embedAPI:       embedAPI,
	}
}

func newAPIClient(baseURL, apiKey string) *openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	api := openai.NewClient(options...)
	return &api
}

var _ ai.Client = (*Client)(nil)

// GetMetrics returns usage accumulated since the last reset.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics zeroes the accumulated usage counters.
func (c *Client) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

func (c *Client) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return &ai.ProviderError{
			Provider: "openai",
			Status:   apierr.StatusCode,
			Body:     apierr.RawJSON(),
			Err:      err,
		}
	}
	return &ai.ProviderError{Provider: "openai", Err: err}
}
