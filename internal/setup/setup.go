// Package setup assembles the engine from configuration. Both the API
// server and the worker build the same engine; only the queue role
// differs.
package setup

import (
	"context"
	"time"

	"github.com/mangrove-ai/mangrove/internal/config"
	"github.com/mangrove-ai/mangrove/internal/storage"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/ai/ollama"
	"github.com/mangrove-ai/mangrove/pkg/ai/openai"
	"github.com/mangrove-ai/mangrove/pkg/engine"
	"github.com/mangrove-ai/mangrove/pkg/ingest"
	"github.com/mangrove-ai/mangrove/pkg/leaselock"
	"github.com/mangrove-ai/mangrove/pkg/query"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// NewAIClient builds the provider selected by AI_ADAPTER.
func NewAIClient(cfg *config.Config) (ai.Client, error) {
	switch cfg.AIAdapter {
	case "ollama":
		return ollama.New(ollama.Params{
			ChatModel:      cfg.ChatModel,
			ExtractModel:   cfg.ExtractModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			BaseURL:        cfg.ChatURL,
			APIKey:         cfg.ChatKey,
			EmbeddingURL:   cfg.EmbeddingURL,
			EmbeddingKey:   cfg.EmbeddingKey,
			MaxParallel:    cfg.ParallelAI,
		})
	default:
		return openai.New(openai.Params{
			ChatModel:      cfg.ChatModel,
			ExtractModel:   cfg.ExtractModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
			BaseURL:        cfg.ChatURL,
			APIKey:         cfg.ChatKey,
			EmbeddingURL:   cfg.EmbeddingURL,
			EmbeddingKey:   cfg.EmbeddingKey,
			MaxParallel:    cfg.ParallelAI,
		}), nil
	}
}

// NewEngine wires stores, AI client, and pipelines into an Engine.
// publish is nil for processes that ingest inline.
func NewEngine(cfg *config.Config, stores storage.Stores, client ai.Client, publish engine.PublishFunc) (*engine.Engine, error) {
	codec, err := tokens.NewCodec(cfg.TokenEncoder)
	if err != nil {
		return nil, err
	}
	retryBase := time.Duration(cfg.RetryBaseMs) * time.Millisecond

	extractor := ingest.NewExtractor(ingest.ExtractorParams{
		Client:         client,
		Cache:          stores.Cache,
		EntityTypes:    cfg.EntityTypes,
		Language:       cfg.Language,
		GleaningRounds: cfg.GleaningRounds,
		MaxRetries:     cfg.MaxRetries,
		RetryBase:      retryBase,
	})

	return engine.New(engine.Params{
		Client:  client,
		Graph:   stores.Graph,
		Vectors: stores.Vectors,
		Cache:   stores.Cache,
		Docs:    stores.Docs,
		Codec:   codec,
		Ingest: ingest.PipelineParams{
			Client:          client,
			Graph:           stores.Graph,
			Vectors:         stores.Vectors,
			Docs:            stores.Docs,
			Codec:           codec,
			Extractor:       extractor,
			ChunkTokens:     cfg.ChunkTokens,
			ChunkOverlap:    cfg.ChunkOverlap,
			ExtractParallel: cfg.ExtractBatch,
			EmbedBatch:      cfg.EmbedBatch,
			SummarizeAt:     cfg.SummarizeAtFragments,
			MaxDescLen:      cfg.MaxDescriptionLen,
			MaxRetries:      cfg.MaxRetries,
			RetryBase:       retryBase,
		},
		Retrieval: query.PipelineParams{
			Client:         client,
			Graph:          stores.Graph,
			Vector:         stores.Vectors,
			Cache:          stores.Cache,
			Codec:          codec,
			TopK:           cfg.TopK,
			ContextBudget:  cfg.QueryTokenBudget,
			BudgetRatios:   []float64{cfg.EntityRatio, cfg.RelationRatio, cfg.ChunkRatio},
			SectionHeaders: true,
			MaxRetries:     cfg.MaxRetries,
			RetryBase:      retryBase,
		},
		Publish:    publish,
		Lock:       tenantLock(stores.Locks),
		MaxRetries: cfg.MaxRetries,
		RetryBase:  retryBase,
	})
}

// tenantLock adapts the lease lock client to the engine's lock hook.
// Leases outlive slow ingestions through background renewal; waiters
// block until the holder releases or expires.
func tenantLock(locks *leaselock.Client) engine.LockFunc {
	if locks == nil {
		return nil
	}
	return func(ctx context.Context, key string, fn func(ctx context.Context) error) error {
		return locks.WithLease(ctx, key, leaselock.Options{
			TTL:        10 * time.Minute,
			RenewEvery: 4 * time.Minute,
			Wait:       true,
		}, fn)
	}
}
