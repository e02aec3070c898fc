package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/tokens"

	"golang.org/x/sync/errgroup"
)

// Pipeline processes claimed documents end to end: chunk, extract,
// merge, summarize over-fragmented descriptions, embed, and upsert
// into the graph and vector stores.
type Pipeline struct {
	client    ai.Client
	graph     store.GraphStore
	vectors   store.VectorStore
	docs      store.DocumentStore
	codec     *tokens.Codec
	extractor *Extractor

	chunkTokens     int
	chunkOverlap    int
	extractParallel int
	embedBatch      int
	summarizeAt     int
	maxDescLen      int
	maxRetries      int
	retryBase       time.Duration
}

// PipelineParams wires a Pipeline. ExtractParallel caps concurrent
// chunk extractions; the AI client's own semaphore still bounds
// requests globally.
type PipelineParams struct {
	Client    ai.Client
	Graph     store.GraphStore
	Vectors   store.VectorStore
	Docs      store.DocumentStore
	Codec     *tokens.Codec
	Extractor *Extractor

	ChunkTokens     int
	ChunkOverlap    int
	ExtractParallel int
	EmbedBatch      int
	SummarizeAt     int
	MaxDescLen      int
	MaxRetries      int
	RetryBase       time.Duration
}

// NewPipeline creates a Pipeline.
func NewPipeline(params PipelineParams) *Pipeline {
	p := &Pipeline{
		client:          params.Client,
		graph:           params.Graph,
		vectors:         params.Vectors,
		docs:            params.Docs,
		codec:           params.Codec,
		extractor:       params.Extractor,
		chunkTokens:     params.ChunkTokens,
		chunkOverlap:    params.ChunkOverlap,
		extractParallel: params.ExtractParallel,
		embedBatch:      params.EmbedBatch,
		summarizeAt:     params.SummarizeAt,
		maxDescLen:      params.MaxDescLen,
		maxRetries:      params.MaxRetries,
		retryBase:       params.RetryBase,
	}
	if p.extractParallel < 1 {
		p.extractParallel = 1
	}
	if p.embedBatch < 1 {
		p.embedBatch = 32
	}
	return p
}

// ProcessDocument claims the document and runs it through the
// pipeline. Losing the claim returns store.ErrAlreadyClaimed; callers
// treat that as another worker's success. Any processing failure marks
// the document failed with its reason and is returned.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID string) error {
	doc, err := p.docs.ClaimProcessing(ctx, documentID)
	if err != nil {
		return err
	}

	exists, err := p.vectors.HasVectors(ctx, doc.ID)
	if err != nil {
		return err
	}
	if exists {
		logger.Info("[Ingest] Document already has vectors, skipping", "document", doc.ID, "tenant", doc.Tenant)
		return p.docs.MarkProcessed(ctx, doc.ID)
	}

	if err := p.process(ctx, doc); err != nil {
		if markErr := p.docs.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			logger.Error("[Ingest] Failed to mark document failed", "document", doc.ID, "err", markErr)
		}
		return err
	}
	return p.docs.MarkProcessed(ctx, doc.ID)
}

func (p *Pipeline) process(ctx context.Context, doc common.Document) error {
	start := time.Now()
	chunks := ChunkDocument(p.codec, doc, p.chunkTokens, p.chunkOverlap)
	if len(chunks) == 0 {
		logger.Warn("[Ingest] Document has no extractable text", "document", doc.ID)
		return nil
	}
	logger.Info("[Ingest] Processing document",
		"document", doc.ID, "tenant", doc.Tenant, "chunks", len(chunks))

	entitiesByChunk := make([][]common.Entity, len(chunks))
	relationsByChunk := make([][]common.Relation, len(chunks))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(p.extractParallel)
	for i := range chunks {
		eg.Go(func() error {
			entities, relations, err := p.extractor.ExtractChunk(ectx, chunks[i])
			if err != nil {
				return fmt.Errorf("extract chunk %d: %w", chunks[i].ChunkIndex, err)
			}
			entitiesByChunk[i] = entities
			relationsByChunk[i] = relations
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var allEntities []common.Entity
	var allRelations []common.Relation
	for i := range chunks {
		allEntities = append(allEntities, entitiesByChunk[i]...)
		allRelations = append(allRelations, relationsByChunk[i]...)
	}
	entities := MergeEntities(allEntities, p.maxDescLen)
	relations := MergeRelations(allRelations, p.maxDescLen)

	if err := p.summarizeFragmented(ctx, doc.Tenant, entities, relations); err != nil {
		return err
	}

	chunkRecords, err := p.embedChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	entityRecords, err := p.embedEntities(ctx, doc.Tenant, entities)
	if err != nil {
		return fmt.Errorf("embed entities: %w", err)
	}

	storeRetry := util.RetryPolicy{
		MaxAttempts: p.maxRetries,
		BaseDelay:   p.retryBase,
		Classify:    store.IsTransient,
		Operation:   "upsert document " + doc.ID,
	}
	err = util.RetryTransient(ctx, storeRetry, func(ctx context.Context) error {
		if err := p.graph.UpsertEntities(ctx, doc.Tenant, entities); err != nil {
			return err
		}
		if err := p.graph.UpsertRelations(ctx, doc.Tenant, relations); err != nil {
			return err
		}
		return p.vectors.UpsertBatch(ctx, append(chunkRecords, entityRecords...))
	})
	if err != nil {
		return err
	}

	logger.Info("[Ingest] Document processed",
		"document", doc.ID,
		"tenant", doc.Tenant,
		"chunks", len(chunks),
		"entities", len(entities),
		"relations", len(relations),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// summarizeFragmented rewrites descriptions that have accumulated at
// least summarizeAt merge fragments into one model-written summary.
func (p *Pipeline) summarizeFragmented(ctx context.Context, tenant string, entities []common.Entity, relations []common.Relation) error {
	if p.summarizeAt < 2 {
		return nil
	}
	for i := range entities {
		fragments := strings.Split(entities[i].Description, common.DescriptionSeparator)
		if len(fragments) < p.summarizeAt {
			continue
		}
		summary, err := p.extractor.Summarize(ctx, tenant, entities[i].Name, fragments)
		if err != nil {
			return fmt.Errorf("summarize entity %s: %w", entities[i].Name, err)
		}
		entities[i].Description = summary
	}
	for i := range relations {
		fragments := strings.Split(relations[i].Description, common.DescriptionSeparator)
		if len(fragments) < p.summarizeAt {
			continue
		}
		subject := relations[i].Source + " -> " + relations[i].Target
		summary, err := p.extractor.Summarize(ctx, tenant, subject, fragments)
		if err != nil {
			return fmt.Errorf("summarize relation %s: %w", subject, err)
		}
		relations[i].Description = summary
	}
	return nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []common.Chunk) ([]common.VectorRecord, error) {
	records := make([]common.VectorRecord, len(chunks))
	err := store.ChunkRange(len(chunks), p.embedBatch, func(start, end int) error {
		inputs := make([]string, end-start)
		for i := start; i < end; i++ {
			inputs[i-start] = chunks[i].Text
		}
		embeddings, err := p.embedBatchRetry(ctx, inputs)
		if err != nil {
			return err
		}
		for i := start; i < end; i++ {
			records[i] = common.VectorRecord{
				ID:         chunks[i].ID,
				Embedding:  embeddings[i-start],
				Type:       common.VectorTypeChunk,
				Content:    chunks[i].Text,
				DocumentID: chunks[i].DocumentID,
				ChunkIndex: chunks[i].ChunkIndex,
				Tenant:     chunks[i].Tenant,
			}
		}
		return nil
	})
	return records, err
}

// embedEntities embeds name plus description so similarity search can
// find an entity from either.
func (p *Pipeline) embedEntities(ctx context.Context, tenant string, entities []common.Entity) ([]common.VectorRecord, error) {
	records := make([]common.VectorRecord, len(entities))
	err := store.ChunkRange(len(entities), p.embedBatch, func(start, end int) error {
		inputs := make([]string, end-start)
		for i := start; i < end; i++ {
			inputs[i-start] = entities[i].Name + "\n" + entities[i].Description
		}
		embeddings, err := p.embedBatchRetry(ctx, inputs)
		if err != nil {
			return err
		}
		for i := start; i < end; i++ {
			records[i] = common.VectorRecord{
				ID:         common.EntityVectorID(tenant, entities[i].Name),
				Embedding:  embeddings[i-start],
				Type:       common.VectorTypeEntity,
				Content:    entities[i].Name,
				DocumentID: entities[i].SourceDocumentID,
				Tenant:     tenant,
			}
		}
		return nil
	})
	return records, err
}

func (p *Pipeline) embedBatchRetry(ctx context.Context, inputs []string) ([][]float32, error) {
	policy := util.RetryPolicy{
		MaxAttempts: p.maxRetries,
		BaseDelay:   p.retryBase,
		Classify:    ai.IsRetryable,
		Operation:   "embed batch",
	}
	return util.RetryTransientValue(ctx, policy, func(ctx context.Context) ([][]float32, error) {
		return p.client.EmbedBatch(ctx, inputs)
	})
}
