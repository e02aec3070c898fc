// Package engine is the composition surface of the RAG system: one
// explicitly constructed service object owning ingestion, retrieval,
// answer synthesis, and tenant lifecycle. Processes create exactly one
// Engine at startup and tear it down on shutdown; nothing looks it up
// ambiently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mangrove-ai/mangrove/internal/util"
	"github.com/mangrove-ai/mangrove/pkg/ai"
	"github.com/mangrove-ai/mangrove/pkg/common"
	"github.com/mangrove-ai/mangrove/pkg/ingest"
	"github.com/mangrove-ai/mangrove/pkg/logger"
	"github.com/mangrove-ai/mangrove/pkg/query"
	"github.com/mangrove-ai/mangrove/pkg/store"
	"github.com/mangrove-ai/mangrove/pkg/tokens"
)

// PublishFunc hands a document off to the ingestion queue. When nil the
// engine processes documents inline on InsertDocument.
type PublishFunc func(ctx context.Context, tenant, documentID string) error

// LockFunc serializes graph mutations for one tenant across workers,
// running fn while the lock named key is held. When nil fn runs
// unguarded.
type LockFunc func(ctx context.Context, key string, fn func(ctx context.Context) error) error

// Params wires an Engine.
type Params struct {
	Client  ai.Client
	Graph   store.GraphStore
	Vectors store.VectorStore
	Cache   store.ExtractionCache
	Docs    store.DocumentStore
	Codec   *tokens.Codec

	Ingest    ingest.PipelineParams
	Retrieval query.PipelineParams

	// Publish enqueues documents for asynchronous processing. Optional.
	Publish PublishFunc

	// Lock guards per-tenant graph mutations. Optional; the memory
	// backend runs without one.
	Lock LockFunc

	ResponseFormat string

	MaxRetries int
	RetryBase  time.Duration
}

// Engine owns the full document and query lifecycle for all tenants.
type Engine struct {
	client  ai.Client
	graph   store.GraphStore
	vectors store.VectorStore
	cache   store.ExtractionCache
	docs    store.DocumentStore

	ingest    *ingest.Pipeline
	retrieval *query.Pipeline
	publish   PublishFunc
	lock      LockFunc

	responseFormat string
	maxRetries     int
	retryBase      time.Duration
}

// New constructs an Engine from its collaborators.
func New(p Params) (*Engine, error) {
	switch {
	case p.Client == nil:
		return nil, errors.New("engine: AI client is required")
	case p.Graph == nil || p.Vectors == nil || p.Cache == nil || p.Docs == nil:
		return nil, errors.New("engine: all stores are required")
	case p.Codec == nil:
		return nil, errors.New("engine: token codec is required")
	}

	responseFormat := p.ResponseFormat
	if responseFormat == "" {
		responseFormat = ai.DefaultResponseFormat
	}

	return &Engine{
		client:         p.Client,
		graph:          p.Graph,
		vectors:        p.Vectors,
		cache:          p.Cache,
		docs:           p.Docs,
		ingest:         ingest.NewPipeline(p.Ingest),
		retrieval:      query.NewPipeline(p.Retrieval),
		publish:        p.Publish,
		lock:           p.Lock,
		responseFormat: responseFormat,
		maxRetries:     p.MaxRetries,
		retryBase:      p.RetryBase,
	}, nil
}

// Shutdown logs accumulated model usage. Store connections are owned by
// the composition root and closed there.
func (e *Engine) Shutdown(_ context.Context) error {
	m := e.client.GetMetrics()
	logger.Info("[Engine] Shutdown",
		"input_tokens", m.InputTokens,
		"output_tokens", m.OutputTokens,
		"model_time", time.Duration(m.DurationMs)*time.Millisecond)
	return nil
}

// CreateTenant initializes an isolated graph namespace. Idempotent.
func (e *Engine) CreateTenant(ctx context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	if err := e.graph.CreateGraph(ctx, t); err != nil {
		return fmt.Errorf("create tenant %s: %w", t, err)
	}
	logger.Info("[Engine] Tenant created", "tenant", t)
	return nil
}

// DeleteTenant removes everything the tenant ever stored: graph,
// vectors, cache entries, and document records.
func (e *Engine) DeleteTenant(ctx context.Context, tenant string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}
	return e.withTenantLock(ctx, t, func(ctx context.Context) error {
		if err := e.graph.DeleteGraph(ctx, t); err != nil {
			return fmt.Errorf("delete tenant graph %s: %w", t, err)
		}
		vectors, err := e.vectors.DeleteByTenant(ctx, t)
		if err != nil {
			return fmt.Errorf("delete tenant vectors %s: %w", t, err)
		}
		cached, err := e.cache.DeleteByTenant(ctx, t)
		if err != nil {
			return fmt.Errorf("delete tenant cache %s: %w", t, err)
		}
		docs, err := e.docs.DeleteByTenant(ctx, t)
		if err != nil {
			return fmt.Errorf("delete tenant documents %s: %w", t, err)
		}
		logger.Info("[Engine] Tenant deleted",
			"tenant", t, "vectors", vectors, "cache_entries", cached, "documents", docs)
		return nil
	})
}

// withTenantLock holds the tenant's mutation lock around fn when a
// lock backend is configured.
func (e *Engine) withTenantLock(ctx context.Context, tenant string, fn func(ctx context.Context) error) error {
	if e.lock == nil {
		return fn(ctx)
	}
	return e.lock(ctx, "tenant:"+tenant, fn)
}

// TenantExists reports whether the tenant's graph namespace exists.
func (e *Engine) TenantExists(ctx context.Context, tenant string) (bool, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return false, err
	}
	return e.graph.GraphExists(ctx, t)
}

// InsertDocument registers a document and either enqueues it for a
// worker or, without a queue, processes it inline. Returns the document
// id. An empty id gets a generated one.
func (e *Engine) InsertDocument(ctx context.Context, tenant, documentID, fileName, text string) (string, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return "", err
	}
	exists, err := e.graph.GraphExists(ctx, t)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("tenant %s: %w", t, store.ErrGraphNotFound)
	}

	if documentID == "" {
		documentID, err = gonanoid.New()
		if err != nil {
			return "", err
		}
	}
	doc := common.Document{
		ID:       documentID,
		Tenant:   t,
		FileName: fileName,
		Content:  text,
		Status:   common.DocStatusNotProcessed,
	}
	if err := e.docs.Create(ctx, doc); err != nil {
		return "", fmt.Errorf("create document %s: %w", documentID, err)
	}

	if e.publish != nil {
		if err := e.publish(ctx, t, documentID); err != nil {
			return "", fmt.Errorf("enqueue document %s: %w", documentID, err)
		}
		logger.Info("[Engine] Document enqueued", "tenant", t, "document", documentID)
		return documentID, nil
	}

	if err := e.ProcessDocument(ctx, documentID); err != nil {
		return documentID, err
	}
	return documentID, nil
}

// ProcessDocument runs the ingestion pipeline for one registered
// document, holding the tenant lock so concurrent workers never merge
// into the same graph at once. Losing the processing claim to another
// worker is success.
func (e *Engine) ProcessDocument(ctx context.Context, documentID string) error {
	doc, err := e.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}
	err = e.withTenantLock(ctx, doc.Tenant, func(ctx context.Context) error {
		return e.ingest.ProcessDocument(ctx, documentID)
	})
	if errors.Is(err, store.ErrAlreadyClaimed) {
		logger.Info("[Engine] Document claimed elsewhere", "document", documentID)
		return nil
	}
	return err
}

// GetDocument returns a document's processing state.
func (e *Engine) GetDocument(ctx context.Context, documentID string) (common.Document, error) {
	return e.docs.Get(ctx, documentID)
}

// HasVectors reports whether ingestion already produced vectors for a
// document.
func (e *Engine) HasVectors(ctx context.Context, documentID string) (bool, error) {
	return e.vectors.HasVectors(ctx, documentID)
}

// DeleteDocument removes one document and everything derived from it:
// graph records, chunk and entity embeddings, cache entries, and the
// document row. Entities merged from several documents are removed with
// it; re-ingesting the surviving documents restores them.
func (e *Engine) DeleteDocument(ctx context.Context, tenant, documentID string) error {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return err
	}

	return e.withTenantLock(ctx, t, func(ctx context.Context) error {
		return e.deleteDocumentLocked(ctx, t, documentID)
	})
}

func (e *Engine) deleteDocumentLocked(ctx context.Context, t, documentID string) error {
	entityNames, err := e.entityNamesForDocument(ctx, t, documentID)
	if err != nil && !errors.Is(err, store.ErrGraphNotFound) {
		return err
	}

	policy := util.RetryPolicy{
		MaxAttempts: e.maxRetries,
		BaseDelay:   e.retryBase,
		Classify:    store.IsTransient,
		Operation:   "delete document",
	}
	err = util.RetryTransient(ctx, policy, func(ctx context.Context) error {
		removed, err := e.graph.DeleteBySourceDocument(ctx, t, documentID)
		if err != nil && !errors.Is(err, store.ErrGraphNotFound) {
			return err
		}

		chunkIDs, err := e.vectors.GetChunkIDsByDocument(ctx, t, documentID)
		if err != nil {
			return err
		}
		if err := e.vectors.DeleteChunkEmbeddings(ctx, t, chunkIDs); err != nil {
			return err
		}
		if err := e.vectors.DeleteEntityEmbeddings(ctx, t, entityNames); err != nil {
			return err
		}
		if _, err := e.cache.DeleteByChunks(ctx, t, chunkIDs); err != nil {
			return err
		}
		if err := e.docs.Delete(ctx, documentID); err != nil {
			return err
		}

		logger.Info("[Engine] Document deleted",
			"tenant", t,
			"document", documentID,
			"graph_records", removed,
			"chunks", len(chunkIDs),
			"entities", len(entityNames))
		return nil
	})
	return err
}

// Stats summarizes one tenant's graph.
func (e *Engine) Stats(ctx context.Context, tenant string) (common.GraphStats, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.GraphStats{}, err
	}
	return e.graph.GetStats(ctx, t)
}

// ExportGraph returns the tenant's full graph for external use.
func (e *Engine) ExportGraph(ctx context.Context, tenant string) (common.Subgraph, error) {
	t, err := store.ValidateTenant(tenant)
	if err != nil {
		return common.Subgraph{}, err
	}
	entities, err := e.graph.GetAllEntities(ctx, t)
	if err != nil {
		return common.Subgraph{}, err
	}
	relations, err := e.graph.GetAllRelations(ctx, t)
	if err != nil {
		return common.Subgraph{}, err
	}
	return common.Subgraph{Entities: entities, Relations: relations}, nil
}

func (e *Engine) entityNamesForDocument(ctx context.Context, tenant, documentID string) ([]string, error) {
	entities, err := e.graph.GetAllEntities(ctx, tenant)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, ent := range entities {
		if ent.SourceDocumentID == documentID {
			names = append(names, ent.Name)
		}
	}
	return names, nil
}
