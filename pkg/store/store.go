// Package store defines the tenant-scoped storage contracts of the
// engine: graph persistence, vector similarity search, the extraction
// cache, and document processing state.
//
// Every operation is keyed by tenant id. Implementations must guarantee
// physical isolation: no operation against one tenant's graph may
// observe or mutate another tenant's data, even for colliding entity
// names.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/common"
)

var (
	// ErrInvalidTenant marks a malformed tenant identifier. Never retried.
	ErrInvalidTenant = errors.New("invalid tenant id")
	// ErrGraphNotFound marks an operation against a tenant whose graph
	// does not exist. Call CreateGraph first. Never retried.
	ErrGraphNotFound = errors.New("tenant graph does not exist, call CreateGraph first")
	// ErrNotFound marks a missing single record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyClaimed marks a document processing claim lost to a
	// concurrent worker.
	ErrAlreadyClaimed = errors.New("document already claimed for processing")
)

// UpsertBatchSize is the recommended chunk size for batched graph writes.
const UpsertBatchSize = 1000

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateTenant normalizes a tenant id to lower case and rejects
// anything that cannot name an isolated graph namespace.
func ValidateTenant(tenant string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(tenant))
	if !tenantIDPattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenant, tenant)
	}
	return t, nil
}

// GraphStore persists one physically isolated knowledge graph per
// tenant. Upserts use merge semantics: entities match by normalized
// name, relations by ordered (source, target) pair; on conflict the
// merge rule of package common applies.
type GraphStore interface {
	// CreateGraph creates the tenant's graph namespace. Idempotent.
	CreateGraph(ctx context.Context, tenant string) error
	// DeleteGraph drops the tenant's graph and everything in it.
	// Idempotent; logs and continues if the graph is absent. The cost is
	// proportional to the tenant's graph size, not to the number of
	// other tenants.
	DeleteGraph(ctx context.Context, tenant string) error
	// GraphExists reports whether the tenant's graph namespace exists.
	// Read-only, no side effects.
	GraphExists(ctx context.Context, tenant string) (bool, error)

	UpsertEntity(ctx context.Context, tenant string, entity common.Entity) error
	UpsertEntities(ctx context.Context, tenant string, entities []common.Entity) error
	UpsertRelation(ctx context.Context, tenant string, relation common.Relation) error
	UpsertRelations(ctx context.Context, tenant string, relations []common.Relation) error

	// GetEntity looks up one entity by name. Returns ErrNotFound when
	// absent.
	GetEntity(ctx context.Context, tenant, name string) (common.Entity, error)
	// GetEntities looks up several entities by name; missing names are
	// silently omitted from the result.
	GetEntities(ctx context.Context, tenant string, names []string) ([]common.Entity, error)
	GetAllEntities(ctx context.Context, tenant string) ([]common.Entity, error)
	GetAllRelations(ctx context.Context, tenant string) ([]common.Relation, error)
	// GetRelationsForEntity returns relations where the named entity is
	// source or target.
	GetRelationsForEntity(ctx context.Context, tenant, name string) ([]common.Relation, error)

	// DeleteBySourceDocument removes all entities and relations whose
	// SourceDocumentID matches and returns how many records were removed.
	DeleteBySourceDocument(ctx context.Context, tenant, documentID string) (int, error)

	// Traverse walks the neighborhood of a start entity up to maxDepth
	// hops and returns the visited subgraph.
	Traverse(ctx context.Context, tenant, startEntity string, maxDepth int) (common.Subgraph, error)
	// ShortestPath returns the entity names along a shortest undirected
	// path between two entities, or an empty slice when none exists.
	ShortestPath(ctx context.Context, tenant, from, to string) ([]string, error)

	GetStats(ctx context.Context, tenant string) (common.GraphStats, error)
}

// VectorMatch is one ranked similarity result.
type VectorMatch struct {
	ID         string
	Score      float64
	Type       common.VectorType
	Content    string
	DocumentID string
	ChunkIndex int
}

// VectorFilter narrows a similarity query. Tenant is mandatory; Type
// limits results to chunk or entity vectors when set.
type VectorFilter struct {
	Tenant string
	Type   common.VectorType
}

// VectorStore indexes chunk and entity embeddings for cosine similarity
// search, partitioned by tenant. Embeddings longer than the configured
// dimension are truncated deterministically, never re-normalized.
type VectorStore interface {
	Upsert(ctx context.Context, record common.VectorRecord) error
	UpsertBatch(ctx context.Context, records []common.VectorRecord) error

	Query(ctx context.Context, vector []float32, topK int, filter VectorFilter) ([]VectorMatch, error)

	Delete(ctx context.Context, tenant, id string) error
	DeleteBatch(ctx context.Context, tenant string, ids []string) error
	DeleteEntityEmbeddings(ctx context.Context, tenant string, names []string) error
	DeleteChunkEmbeddings(ctx context.Context, tenant string, chunkIDs []string) error
	DeleteByTenant(ctx context.Context, tenant string) (int, error)

	GetChunkIDsByDocument(ctx context.Context, tenant, documentID string) ([]string, error)
	// HasVectors reports whether any vectors exist for a document, used
	// to detect and avoid double-processing under concurrent ingestion.
	HasVectors(ctx context.Context, documentID string) (bool, error)
}

// ExtractionCache stores raw LLM outputs addressed by the content hash
// of the exact model input, scoped per tenant and cache kind. It lets
// the graph be rebuilt from cached outputs without re-calling the model
// and skips redundant calls for unchanged content.
type ExtractionCache interface {
	// Store upserts an entry on the (tenant, kind, contentHash) key.
	// Last write wins. Returns the entry id.
	Store(ctx context.Context, entry common.CacheEntry) (string, error)
	// Get returns the entry for a key or ErrNotFound.
	Get(ctx context.Context, tenant string, kind common.CacheKind, contentHash string) (common.CacheEntry, error)
	// GetByChunk returns all entries recorded for a chunk, used to
	// rebuild the graph for that chunk without re-extracting.
	GetByChunk(ctx context.Context, tenant, chunkID string) ([]common.CacheEntry, error)
	// DeleteByTenant cascades on tenant deletion and returns the number
	// of removed entries.
	DeleteByTenant(ctx context.Context, tenant string) (int, error)
	DeleteByChunks(ctx context.Context, tenant string, chunkIDs []string) (int, error)
}

// DocumentStore tracks document processing state. The transition from
// not_processed to processing is claimed transactionally so two
// concurrent workers cannot both claim one document.
type DocumentStore interface {
	Create(ctx context.Context, doc common.Document) error
	Get(ctx context.Context, id string) (common.Document, error)
	// ClaimProcessing atomically moves a document from not_processed to
	// processing. Returns ErrAlreadyClaimed when another worker won, or
	// when the document was already processed.
	ClaimProcessing(ctx context.Context, id string) (common.Document, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
	ListByTenant(ctx context.Context, tenant string) ([]common.Document, error)
	DeleteByTenant(ctx context.Context, tenant string) (int, error)
	Delete(ctx context.Context, id string) error
}
