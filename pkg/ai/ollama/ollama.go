// Package ollama implements the ai.Client contract against a local or
// remote Ollama server.
package ollama

import (
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/mangrove-ai/mangrove/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// Client implements ai.Client using Ollama as the backend.
type Client struct {
	chatModel      string
	extractModel   string
	embeddingModel string
	embeddingDim   int

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	api      *api.Client
	embedAPI *api.Client
}

// Params contains configuration options for creating a new Client.
type Params struct {
	ChatModel      string
	ExtractModel   string
	EmbeddingModel string
	EmbeddingDim   int

	BaseURL string
	APIKey  string

	// EmbeddingURL and EmbeddingKey point embeddings at a different
	// server. When empty, embeddings use BaseURL/APIKey.
	EmbeddingURL string
	EmbeddingKey string

	MaxParallel int
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

// New creates an Ollama-backed client. It connects to the server at
// BaseURL (or the Ollama default if empty) and uses the configured
// models for chat, extraction and embeddings.
func New(params Params) (*Client, error) {
	chat, err := newAPIClient(params.BaseURL, params.APIKey)
	if err != nil {
		return nil, err
	}
	embed := chat
	if params.EmbeddingURL != "" || params.EmbeddingKey != "" {
		baseURL, apiKey := params.EmbeddingURL, params.EmbeddingKey
		if baseURL == "" {
			baseURL = params.BaseURL
		}
		if apiKey == "" {
			apiKey = params.APIKey
		}
		embed, err = newAPIClient(baseURL, apiKey)
		if err != nil {
			return nil, err
		}
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
		reqLock:        semaphore.NewWeighted(int64(parallel)),
		api:            chat,
		embedAPI:       embed,
	}, nil
}

func newAPIClient(baseURL, apiKey string) (*api.Client, error) {
	var (
		u   *url.URL
		err error
	)
	if baseURL != "" {
		u, err = url.Parse(baseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if apiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + apiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}
	return api.NewClient(u, httpClient), nil
}

var _ ai.Client = (*Client)(nil)

// GetMetrics returns the accumulated token usage and timing metrics
// since the last reset.
func (c *Client) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}

// ResetMetrics clears all accumulated token and timing metrics.
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
	var se api.StatusError
	if errors.As(err, &se) {
		return &ai.ProviderError{
			Provider: "ollama",
			Status:   se.StatusCode,
			Body:     se.ErrorMessage,
			Err:      err,
		}
	}
	return &ai.ProviderError{Provider: "ollama", Err: err}
}
